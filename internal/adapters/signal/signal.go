package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const writeWait = 5 * time.Second

// WSConn is an indirection over *websocket.Conn to ease testing.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	WriteControl(mt int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// TokenVerifier turns a handshake token into a profile.
type TokenVerifier interface {
	Verify(token string) (domain.User, error)
}

type Settings struct {
	ReadLimit   int64
	PingPeriod  time.Duration
	AuthTimeout time.Duration
	SendBuffer  int
}

func (s Settings) pongWait() time.Duration { return s.PingPeriod * 10 / 9 }

type SignalWSController struct {
	Registry *app.Registry
	Inbox    chan<- core.Inbound
	Verifier TokenVerifier
	Limiter  *RoomRateLimiter
	Settings Settings
}

type WsSignalConn struct {
	conn WSConn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws WSConn, buffer int) *WsSignalConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *WsSignalConn) Cancelled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("remote", c.ClientIP()).Msg("new WS connection")
	ctl.Serve(ctx, ws)
}

// Serve authenticates ws and, on success, binds it to its user and starts
// the pumps. It returns once the pumps are running.
func (ctl *SignalWSController) Serve(ctx context.Context, ws WSConn) {
	ws.SetReadLimit(ctl.Settings.ReadLimit)

	profile, err := Handshake(ws, ctl.Verifier, ctl.Settings.AuthTimeout)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("handshake rejected")
		ctl.reject(ws, err)
		return
	}

	user := ctl.Registry.GetOrCreateUser(profile)
	conn := newWsSignalConn(ws, ctl.Settings.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.BindSignal(user, conn, cancel)
	user.Send(domain.Hello(user.Name()))

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, user, conn)
}

// reject writes the handshake failure straight to the socket and closes it.
func (ctl *SignalWSController) reject(ws WSConn, cause error) {
	defer ws.Close()
	f, err := codec.EncodeEvent(domain.ErrorEvent(cause))
	if err != nil {
		return
	}
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, f); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("write handshake error")
	}
}
