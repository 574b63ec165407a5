package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	var ev domain.Event
	if err := codec.Unmarshal(f, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) ofType(t domain.EventType) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) gameEvents(k domain.GameEventKind) []domain.GameEvent {
	var out []domain.GameEvent
	for _, ev := range c.ofType(domain.EventGameEvent) {
		if ev.GameEvent != nil && ev.GameEvent.Kind == k {
			out = append(out, *ev.GameEvent)
		}
	}
	return out
}

type player struct {
	*User
	conn *fakeConn
}

func newPlayer(reg *Registry, id, name string) player {
	u := reg.GetOrCreateUser(domain.User{ID: domain.UserID(id), Username: name})
	conn := &fakeConn{}
	reg.BindSignal(u, conn, nil)
	return player{User: u, conn: conn}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []domain.MatchRecord
}

func (r *memRecorder) Record(_ context.Context, rec domain.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *memRecorder) all() []domain.MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MatchRecord(nil), r.recs...)
}

func testMatchOptions(rec MatchRecorder) MatchOptions {
	return MatchOptions{
		Recorder:        rec,
		NextGameDelay:   10 * time.Millisecond,
		DisconnectGrace: 30 * time.Millisecond,
	}
}

// startMatch drives two players through a room into a match.
func startMatch(t *testing.T, rooms *RoomManager, a, b player) *MatchHandle {
	t.Helper()
	ctx := context.Background()
	id, err := rooms.CreateRoom(ctx, a.User)
	require.NoError(t, err)
	require.NoError(t, rooms.JoinRoom(ctx, b.User, id))
	require.NoError(t, rooms.RoomAction(ctx, a.User, id, domain.RoomAction{Kind: domain.ActionReady}))
	require.NoError(t, rooms.RoomAction(ctx, b.User, id, domain.RoomAction{Kind: domain.ActionReady}))

	st := a.CurrentStatus()
	require.Equal(t, StatusInMatch, st.Kind)
	return st.Match
}
