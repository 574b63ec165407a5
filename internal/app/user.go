package app

import (
	"context"
	"sync"

	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/rs/zerolog/log"
)

type StatusKind int

const (
	StatusIdle StatusKind = iota
	StatusInRoom
	StatusInMatch
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusInRoom:
		return "in_room"
	case StatusInMatch:
		return "in_match"
	}
	return "unknown"
}

// Status is where a user currently is. Room is set for StatusInRoom,
// Match for StatusInMatch.
type Status struct {
	Kind  StatusKind
	Room  domain.RoomID
	Match *MatchHandle
}

func Idle() Status { return Status{Kind: StatusIdle} }
func InRoom(id domain.RoomID) Status { return Status{Kind: StatusInRoom, Room: id} }
func InMatch(h *MatchHandle) Status { return Status{Kind: StatusInMatch, Match: h} }
func (s Status) IsIdle() bool { return s.Kind == StatusIdle }
func (s Status) InRoomID(id domain.RoomID) bool {
	return s.Kind == StatusInRoom && s.Room == id
}

type connEntry struct {
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// User is the live object behind one identity. Rooms and matches hold it
// strongly; the registry only keeps a weak reference.
type User struct {
	profile domain.User

	// mu is the per-identity status lock. Hold it only for a check-and-set,
	// never while waiting on a coordinator.
	mu     sync.Mutex
	status Status

	bindMu sync.Mutex
	connMu sync.Mutex
	conn   *connEntry
}

func newUser(p domain.User) *User {
	return &User{profile: p, status: Idle()}
}

func (u *User) ID() domain.UserID { return u.profile.ID }
func (u *User) Name() string { return u.profile.Username }
func (u *User) Profile() domain.User { return u.profile }

func (u *User) Lock() { u.mu.Lock() }
func (u *User) Unlock() { u.mu.Unlock() }

// Status must be called with the lock held.
func (u *User) Status() Status { return u.status }

// SetStatus must be called with the lock held.
func (u *User) SetStatus(s Status) { u.status = s }

// CurrentStatus takes the lock for a single read.
func (u *User) CurrentStatus() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// LockPair locks both users in ascending id order and returns the unlock func.
func LockPair(a, b *User) func() {
	if a == b {
		a.Lock()
		return a.Unlock
	}
	first, second := a, b
	if second.ID() < first.ID() {
		first, second = second, first
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}

// retire stops the receive loop behind e and closes its stream.
func (e *connEntry) retire() {
	if e.Cancel != nil {
		e.Cancel()
	}
	e.Conn.Close()
}

// bind retires the current connection and only then installs conn, so the
// old receive loop is cancelled before the new one becomes visible. It
// reports whether a connection was replaced.
func (u *User) bind(conn core.SignalConnection, cancel context.CancelFunc) bool {
	u.bindMu.Lock()
	defer u.bindMu.Unlock()

	u.connMu.Lock()
	prev := u.conn
	u.conn = nil
	u.connMu.Unlock()
	if prev != nil {
		prev.retire()
	}

	u.connMu.Lock()
	u.conn = &connEntry{Conn: conn, Cancel: cancel}
	u.connMu.Unlock()
	return prev != nil
}

// unbind clears the slot only if conn is still the installed one, and
// releases the connection's context.
func (u *User) unbind(conn core.SignalConnection) bool {
	u.connMu.Lock()
	e := u.conn
	if e == nil || e.Conn != conn {
		u.connMu.Unlock()
		return false
	}
	u.conn = nil
	u.connMu.Unlock()

	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}

func (u *User) Connection() (core.SignalConnection, bool) {
	u.connMu.Lock()
	defer u.connMu.Unlock()
	if u.conn == nil {
		return nil, false
	}
	return u.conn.Conn, true
}

// Send is best effort: a missing or congested connection drops the event.
func (u *User) Send(ev domain.Event) {
	conn, ok := u.Connection()
	if !ok {
		return
	}
	f, err := codec.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.user").Str("event", string(ev.Type)).Msg("encode event")
		return
	}
	if err := conn.TrySend(f); err != nil {
		log.Debug().Err(err).Str("module", "app.user").Str("uid", string(u.ID())).Str("event", string(ev.Type)).Msg("event dropped")
	}
}
