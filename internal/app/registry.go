package app

import (
	"context"
	"sync"
	"time"
	"weak"

	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps identities to live users without keeping them alive.
// A user disappears once nothing else (a receive loop, a room, a match) holds it.
type Registry struct {
	mu    sync.RWMutex
	users map[domain.UserID]weak.Pointer[User]
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[domain.UserID]weak.Pointer[User]),
	}
}

// GetOrCreateUser returns the live user for p.ID, creating it when the
// previous one has been collected.
func (r *Registry) GetOrCreateUser(p domain.User) *User {
	if u, ok := r.Get(p.ID); ok {
		return u
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if wp, ok := r.users[p.ID]; ok {
		if u := wp.Value(); u != nil {
			return u
		}
	}
	u := newUser(p)
	r.users[p.ID] = weak.Make(u)
	log.Info().Str("module", "app.registry").Str("uid", string(p.ID)).Str("username", p.Username).Msg("created new user")
	return u
}

func (r *Registry) Get(id domain.UserID) (*User, bool) {
	r.mu.RLock()
	wp, ok := r.users[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	u := wp.Value()
	return u, u != nil
}

// BindSignal installs conn as the user's live connection. The previous one,
// if any, is cancelled and closed first so its receive loop stops delivering.
func (r *Registry) BindSignal(u *User, conn core.SignalConnection, cancel context.CancelFunc) {
	if u.bind(conn, cancel) {
		log.Info().Str("module", "app.registry").Str("uid", string(u.ID())).Msg("replaced signal")
		return
	}
	log.Info().Str("module", "app.registry").Str("uid", string(u.ID())).Msg("bound signal")
}

// Unbind drops conn if it is still the user's live connection. It reports
// false for a connection that was already superseded.
func (r *Registry) Unbind(u *User, conn core.SignalConnection) bool {
	if !u.unbind(conn) {
		return false
	}
	log.Info().Str("module", "app.registry").Str("uid", string(u.ID())).Msg("unbind signal")
	return true
}

// Send delivers ev to the user's live connection, if any.
func (r *Registry) Send(id domain.UserID, ev domain.Event) {
	if u, ok := r.Get(id); ok {
		u.Send(ev)
	}
}

// Len counts entries whose user is still alive.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, wp := range r.users {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

// Sweep pings every live user and forgets collected ones.
func (r *Registry) Sweep() (alive, pruned int) {
	var live []*User
	r.mu.Lock()
	for id, wp := range r.users {
		u := wp.Value()
		if u == nil {
			delete(r.users, id)
			pruned++
			continue
		}
		live = append(live, u)
	}
	r.mu.Unlock()

	ping := domain.Event{Type: domain.EventPing}
	for _, u := range live {
		u.Send(ping)
	}
	return len(live), pruned
}

// RunLiveness sweeps every interval until ctx is done.
func (r *Registry) RunLiveness(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			alive, pruned := r.Sweep()
			log.Debug().Str("module", "app.registry").Int("alive", alive).Int("pruned", pruned).Msg("liveness sweep")
		}
	}
}
