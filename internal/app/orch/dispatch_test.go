package orch

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Hexo/internal/app"
	"github.com/dkeye/Hexo/internal/codec"
	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *recordingConn) TrySend(f core.Frame) error {
	var ev domain.Event
	if err := codec.Unmarshal(f, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) Close() {}
func (c *recordingConn) Cancelled() bool { return false }

func (c *recordingConn) responses() []domain.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Response
	for _, ev := range c.events {
		if ev.Type == domain.EventResponse {
			out = append(out, *ev.Response)
		}
	}
	return out
}

type staticHistory struct{ recs []domain.MatchRecord }

func (h staticHistory) List(_ context.Context, _ domain.UserID, limit int) ([]domain.MatchRecord, error) {
	if len(h.recs) > limit {
		return h.recs[:limit], nil
	}
	return h.recs, nil
}

func newKernel(t *testing.T) (*Orchestrator, *Dispatcher) {
	rooms := app.NewRoomManager(app.MatchOptions{})
	t.Cleanup(rooms.Stop)
	o := &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Policy:   app.SimplePolicy{},
	}
	d := NewDispatcher(o, 4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go d.Run(ctx)
	return o, d
}

func connect(o *Orchestrator, id string) (*app.User, *recordingConn) {
	u := o.Registry.GetOrCreateUser(domain.User{ID: domain.UserID(id), Username: id})
	conn := &recordingConn{}
	o.Registry.BindSignal(u, conn, nil)
	return u, conn
}

func TestDispatcher_RequestsAnsweredInOrder(t *testing.T) {
	o, d := newKernel(t)
	u, conn := connect(o, "a")

	d.Inbox() <- core.Inbound{Kind: core.InboundRequest, User: u.ID(), Conn: conn,
		Request: domain.Request{ID: 1, Type: domain.RequestCreateRoom}}
	d.Inbox() <- core.Inbound{Kind: core.InboundRequest, User: u.ID(), Conn: conn,
		Request: domain.Request{ID: 2, Type: domain.RequestCreateRoom}}
	d.Inbox() <- core.Inbound{Kind: core.InboundRequest, User: u.ID(), Conn: conn,
		Request: domain.Request{ID: 3, Type: domain.RequestGetRoom}}

	require.Eventually(t, func() bool { return len(conn.responses()) == 3 }, time.Second, 5*time.Millisecond)
	resps := conn.responses()

	assert.Equal(t, uint32(1), resps[0].ID)
	assert.Nil(t, resps[0].Error)
	assert.NotZero(t, resps[0].RoomID)

	assert.Equal(t, uint32(2), resps[1].ID)
	require.NotNil(t, resps[1].Error)
	assert.Equal(t, "user_busy", resps[1].Error.Kind)

	assert.Equal(t, uint32(3), resps[2].ID)
	require.NotNil(t, resps[2].Room)
	assert.Equal(t, resps[0].RoomID, resps[2].Room.ID)
	runtime.KeepAlive(u)
}

func TestDispatcher_StaleLossIsIgnored(t *testing.T) {
	o, d := newKernel(t)
	u, first := connect(o, "a")
	_, err := o.CreateRoom(context.Background(), u)
	require.NoError(t, err)

	second := &recordingConn{}
	o.Registry.BindSignal(u, second, nil)

	d.Inbox() <- core.Inbound{Kind: core.InboundLost, User: u.ID(), Conn: first}
	d.Inbox() <- core.Inbound{Kind: core.InboundRequest, User: u.ID(), Conn: second,
		Request: domain.Request{ID: 9, Type: domain.RequestPing}}
	require.Eventually(t, func() bool { return len(second.responses()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, app.StatusInRoom, u.CurrentStatus().Kind)
	assert.Len(t, o.ListRooms(), 1)
	runtime.KeepAlive(u)
}

func TestDispatcher_LossInRoomLeaves(t *testing.T) {
	o, d := newKernel(t)
	u, conn := connect(o, "a")
	_, err := o.CreateRoom(context.Background(), u)
	require.NoError(t, err)

	d.Inbox() <- core.Inbound{Kind: core.InboundLost, User: u.ID(), Conn: conn}

	require.Eventually(t, func() bool { return u.CurrentStatus().IsIdle() }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(o.ListRooms()) == 0 }, time.Second, 5*time.Millisecond)
	_, ok := u.Connection()
	assert.False(t, ok)
}

func TestOrchestrator_HandleRejectsMalformed(t *testing.T) {
	o, _ := newKernel(t)
	u, _ := connect(o, "a")
	ctx := context.Background()

	resp := o.Handle(ctx, u, domain.Request{ID: 5, Type: domain.RequestRoomAction})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "bad_request", resp.Error.Kind)

	resp = o.Handle(ctx, u, domain.Request{ID: 6, Type: "dance"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "bad_request", resp.Error.Kind)

	resp = o.Handle(ctx, u, domain.Request{ID: 7, Type: domain.RequestSyncMatch})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_in_match", resp.Error.Kind)
}

func TestOrchestrator_JoinEchoesRoomOnlyOnSuccess(t *testing.T) {
	o, _ := newKernel(t)
	host, _ := connect(o, "a")
	guest, _ := connect(o, "b")
	ctx := context.Background()

	id, err := o.CreateRoom(ctx, host)
	require.NoError(t, err)

	resp := o.Handle(ctx, guest, domain.Request{ID: 1, Type: domain.RequestJoinRoom, RoomID: 99})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "room_not_found", resp.Error.Kind)
	assert.Zero(t, resp.RoomID)

	resp = o.Handle(ctx, guest, domain.Request{ID: 2, Type: domain.RequestJoinRoom, RoomID: id})
	require.Nil(t, resp.Error)
	assert.Equal(t, id, resp.RoomID)
	runtime.KeepAlive(host)
	runtime.KeepAlive(guest)
}

func TestOrchestrator_MatchHistoryFromViewerSide(t *testing.T) {
	o, _ := newKernel(t)
	u, _ := connect(o, "b")
	o.Matches = staticHistory{recs: []domain.MatchRecord{{
		ID:         "m1",
		Users:      domain.Pair[domain.User]{{ID: "a", Username: "a"}, {ID: "b", Username: "b"}},
		Scores:     domain.Pair[uint32]{1, 2},
		WinnerSlot: 1,
		Reason:     domain.EndByScore,
	}}}

	got, err := o.MatchHistory(context.Background(), u, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Won)
	assert.Equal(t, domain.Pair[uint32]{2, 1}, got[0].Scores)
	assert.Equal(t, domain.UserID("a"), got[0].Opponent.ID)
}
