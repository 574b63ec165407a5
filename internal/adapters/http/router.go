package http

import (
	"context"
	"strings"

	"github.com/dkeye/Hexo/internal/adapters/signal"
	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/app/orch"
	"github.com/dkeye/Hexo/internal/auth"
	"github.com/dkeye/Hexo/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName  = "HexoSessions"
	sessionToken = "token"
	userKey      = "user"
)

type Deps struct {
	Orch   *orch.Orchestrator
	Signal *signal.SignalWSController
	Issuer *auth.Issuer
}

// AuthMiddleware resolves the caller from a bearer token or the session
// cookie set by /api/login.
func AuthMiddleware(reg *app.Registry, v signal.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			if s, ok := sessions.Default(c).Get(sessionToken).(string); ok {
				token = s
			}
		}
		profile, err := v.Verify(token)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Msg("unauthenticated request")
			abortWithError(c, err)
			return
		}
		c.Set(userKey, reg.GetOrCreateUser(profile))
		c.Next()
	}
}

func currentUser(c *gin.Context) *app.User {
	return c.MustGet(userKey).(*app.User)
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions(sessionName, store))

	h := &handlers{orch: d.Orch, issuer: d.Issuer}

	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.POST("/login", h.login)

	api.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws endpoint hit")
		d.Signal.HandleSignal(ctx, c)
	})

	authed := api.Group("", AuthMiddleware(d.Orch.Registry, d.Issuer))
	authed.GET("/rooms", h.listRooms)
	authed.POST("/rooms", h.createRoom)
	authed.POST("/rooms/:id/join", h.joinRoom)
	authed.GET("/room", h.joinedRoom)
	authed.POST("/room/leave", h.leaveRoom)
	authed.POST("/room/action", h.roomAction)
	authed.GET("/match", h.syncMatch)
	authed.POST("/match/action", h.matchAction)
	authed.GET("/history", h.history)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
