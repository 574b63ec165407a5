// Package history keeps finished matches. Memory serves reads when no
// database is configured, Postgres when one is, and NATS only publishes.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/dkeye/Hexo/internal/domain"
)

type Recorder interface {
	Record(ctx context.Context, rec domain.MatchRecord) error
}

type Lister interface {
	List(ctx context.Context, user domain.UserID, limit int) ([]domain.MatchRecord, error)
}

type Store interface {
	Recorder
	Lister
}

// Memory keeps the most recent records in process.
type Memory struct {
	mu   sync.RWMutex
	recs []domain.MatchRecord
	keep int
}

func NewMemory(keep int) *Memory {
	return &Memory{keep: keep}
}

func (m *Memory) Record(_ context.Context, rec domain.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	if m.keep > 0 && len(m.recs) > m.keep {
		m.recs = slices.Clone(m.recs[len(m.recs)-m.keep:])
	}
	return nil
}

func (m *Memory) List(_ context.Context, user domain.UserID, limit int) ([]domain.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MatchRecord, 0)
	for i := len(m.recs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if _, ok := m.recs[i].SlotOf(user); ok {
			out = append(out, m.recs[i])
		}
	}
	return out, nil
}

// Fanout records into every recorder and reports all failures together.
type Fanout []Recorder

func (f Fanout) Record(ctx context.Context, rec domain.MatchRecord) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type tee struct {
	Lister
	Fanout
}

// Tee reads from store and records into store plus every extra recorder.
func Tee(store Store, extra ...Recorder) Store {
	return tee{Lister: store, Fanout: append(Fanout{store}, extra...)}
}
