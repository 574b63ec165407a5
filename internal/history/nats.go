package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Hexo/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher announces finished matches on a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

func ConnectNATS(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("hexo"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "history").Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("module", "history").Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

func (p *Publisher) Record(ctx context.Context, rec domain.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode match: %w", err)
	}
	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set("Match-Id", string(rec.ID))
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish match %s: %w", rec.ID, err)
	}
	return nil
}

func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Warn().Err(err).Str("module", "history").Msg("nats drain")
	}
}
