package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/Hexo/internal/app/orch"
	"github.com/dkeye/Hexo/internal/auth"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/dkeye/Hexo/internal/engine"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const historyLimit = 50

type loginRequest struct {
	Name string `json:"name"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type handlers struct {
	orch   *orch.Orchestrator
	issuer *auth.Issuer
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserBusy),
		errors.Is(err, domain.ErrRoomIsFull),
		errors.Is(err, domain.ErrNotInRoom),
		errors.Is(err, domain.ErrNotInMatch),
		errors.Is(err, domain.ErrNotYourTurn):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGameAction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAuthFailed), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	}
	if _, ok := domain.ErrorKind(err); ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	if errors.Is(err, auth.ErrInvalidToken) {
		err = domain.ErrAuthFailed
	}
	body := domain.ErrorBodyOf(err)
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": body.Message, "kind": body.Kind})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "users": h.orch.Registry.Len()})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, domain.ErrBadRequest)
		return
	}
	u, err := domain.NewUser(req.Name)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "bad_request"})
		return
	}
	token, err := h.issuer.Issue(*u)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		abortWithError(c, err)
		return
	}

	s := sessions.Default(c)
	s.Set(sessionToken, token)
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		abortWithError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("uid", string(u.ID)).Str("name", u.Username).Msg("guest login")
	c.JSON(http.StatusOK, loginResponse{Token: token, User: *u})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.ListRooms()})
}

func (h *handlers) createRoom(c *gin.Context) {
	id, err := h.orch.CreateRoom(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room_id": id})
}

func (h *handlers) joinRoom(c *gin.Context) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, domain.ErrBadRequest)
		return
	}
	id := domain.RoomID(raw)
	if err := h.orch.JoinRoom(c.Request.Context(), currentUser(c), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": id})
}

func (h *handlers) joinedRoom(c *gin.Context) {
	r, err := h.orch.GetJoinedRoom(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *handlers) leaveRoom(c *gin.Context) {
	if err := h.orch.LeaveRoom(c.Request.Context(), currentUser(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) roomAction(c *gin.Context) {
	var a domain.RoomAction
	if err := c.ShouldBindJSON(&a); err != nil {
		abortWithError(c, domain.ErrBadRequest)
		return
	}
	if err := h.orch.RoomAction(c.Request.Context(), currentUser(c), a); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) syncMatch(c *gin.Context) {
	st, err := h.orch.SyncMatch(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) matchAction(c *gin.Context) {
	var a engine.Action
	if err := c.ShouldBindJSON(&a); err != nil {
		abortWithError(c, domain.ErrBadRequest)
		return
	}
	if err := h.orch.UserAction(c.Request.Context(), currentUser(c), a); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) history(c *gin.Context) {
	list, err := h.orch.MatchHistory(c.Request.Context(), currentUser(c), historyLimit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list})
}
