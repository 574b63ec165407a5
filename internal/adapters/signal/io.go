package signal

import (
	"context"
	"time"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump forwards decoded requests to the kernel. Once ctx is cancelled
// the connection has been superseded, so nothing more is delivered and no
// loss is reported.
func (ctl *SignalWSController) readPump(ctx context.Context, u *app.User, c *WsSignalConn) {
	uid := u.ID()
	// u stays reachable until the loop exits
	defer func() {
		c.Close()
		if ctx.Err() != nil {
			log.Info().Str("module", "signal").Str("uid", string(uid)).Msg("readPump superseded")
			return
		}
		log.Info().Str("module", "signal").Str("uid", string(uid)).Msg("readPump closing")
		select {
		case ctl.Inbox <- core.Inbound{Kind: core.InboundLost, User: u.ID(), Conn: c}:
		case <-ctx.Done():
		}
	}()

	pongWait := ctl.Settings.pongWait()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("uid", string(uid)).Msg("readPump read error")
			return
		}
		if ctx.Err() != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			log.Warn().Str("module", "signal").Str("uid", string(uid)).Int("type", mt).Msg("non-binary frame ignored")
			continue
		}

		req, err := codec.DecodeRequest(core.Frame(data))
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("uid", string(uid)).Msg("bad request frame")
			ctl.reply(c, domain.Response{Error: domain.ErrorBodyOf(domain.ErrBadRequest)})
			continue
		}
		if ctl.Limiter != nil && ctl.Limiter.Applies(req.Type) && !ctl.Limiter.Allow(uid) {
			ctl.reply(c, domain.Response{ID: req.ID, Error: domain.ErrorBodyOf(domain.ErrRateLimited)})
			continue
		}

		select {
		case ctl.Inbox <- core.Inbound{Kind: core.InboundRequest, User: uid, Conn: c, Request: req}:
		case <-ctx.Done():
			return
		}
	}
}

func (ctl *SignalWSController) reply(c *WsSignalConn, resp domain.Response) {
	f, err := codec.EncodeEvent(domain.ResponseEvent(resp))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode response")
		return
	}
	_ = c.TrySend(f)
}
