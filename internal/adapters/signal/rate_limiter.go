package signal

import (
	"sync"
	"time"

	"github.com/dkeye/Hexo/internal/domain"
)

// RoomRateLimiter caps how often one user may create or join rooms within a
// sliding window.
type RoomRateLimiter struct {
	mu        sync.Mutex
	attempts  map[domain.UserID][]time.Time
	limit     int
	window    time.Duration
	lastSweep time.Time
}

func NewRoomRateLimiter(limit int, window time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		attempts:  make(map[domain.UserID][]time.Time),
		limit:     limit,
		window:    window,
		lastSweep: time.Now(),
	}
}

func (rl *RoomRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	since := now.Add(-rl.window)
	rl.sweep(now, since)

	fresh := inWindow(rl.attempts[uid], since)
	if len(fresh) >= rl.limit {
		rl.attempts[uid] = fresh
		return false
	}
	rl.attempts[uid] = append(fresh, now)
	return true
}

// Applies reports whether requests of type t count against the limit.
func (rl *RoomRateLimiter) Applies(t domain.RequestType) bool {
	return t == domain.RequestCreateRoom || t == domain.RequestJoinRoom
}

// sweep drops users with no attempt left in the window, at most once per window.
func (rl *RoomRateLimiter) sweep(now, since time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for uid, ts := range rl.attempts {
		if len(ts) == 0 || !ts[len(ts)-1].After(since) {
			delete(rl.attempts, uid)
		}
	}
}

func inWindow(ts []time.Time, since time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts)+1)
	for _, t := range ts {
		if t.After(since) {
			out = append(out, t)
		}
	}
	return out
}

func (rl *RoomRateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.attempts)
}
