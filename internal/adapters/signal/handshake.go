package signal

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/gorilla/websocket"
)

// Handshake reads the first frame within timeout and verifies its token.
func Handshake(ws WSConn, v TokenVerifier, timeout time.Duration) (domain.User, error) {
	if err := ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrNoMessage, err)
	}
	mt, data, err := ws.ReadMessage()
	if err != nil {
		if isTimeout(err) {
			return domain.User{}, domain.ErrHandshakeTimeout
		}
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrNoMessage, err)
	}
	if mt != websocket.BinaryMessage {
		return domain.User{}, domain.ErrWrongMessageType
	}

	hs, err := codec.DecodeHandshake(core.Frame(data))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	profile, err := v.Verify(hs.Token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
	}
	if err := ws.SetReadDeadline(time.Time{}); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrNoMessage, err)
	}
	return profile, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
