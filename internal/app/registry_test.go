package app

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Hexo/internal/core"
	"github.com/dkeye/Hexo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreateUserReusesLiveUser(t *testing.T) {
	reg := NewRegistry()
	u := reg.GetOrCreateUser(domain.User{ID: "a", Username: "alice"})
	again := reg.GetOrCreateUser(domain.User{ID: "a", Username: "other"})
	assert.Same(t, u, again)
	assert.Equal(t, "alice", again.Name())

	got, ok := reg.Get("a")
	require.True(t, ok)
	assert.Same(t, u, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_BindSignalCancelsPrevious(t *testing.T) {
	reg := NewRegistry()
	u := reg.GetOrCreateUser(domain.User{ID: "a", Username: "alice"})

	firstCtx, firstCancel := context.WithCancel(context.Background())
	defer firstCancel()
	first := &fakeConn{}
	reg.BindSignal(u, first, firstCancel)

	second := &fakeConn{}
	reg.BindSignal(u, second, nil)

	assert.ErrorIs(t, firstCtx.Err(), context.Canceled)
	assert.True(t, first.Cancelled())
	assert.False(t, second.Cancelled())

	conn, ok := u.Connection()
	require.True(t, ok)
	assert.Same(t, second, conn)

	assert.False(t, reg.Unbind(u, first), "stale connection must not unbind the live one")
	assert.True(t, reg.Unbind(u, second))
	_, ok = u.Connection()
	assert.False(t, ok)
}

func TestRegistry_PreviousCancelledBeforeNewInstalled(t *testing.T) {
	reg := NewRegistry()
	u := reg.GetOrCreateUser(domain.User{ID: "a", Username: "alice"})

	var (
		seen    core.SignalConnection
		seenAny bool
	)
	first := &fakeConn{}
	reg.BindSignal(u, first, func() { seen, seenAny = u.Connection() })

	second := &fakeConn{}
	reg.BindSignal(u, second, nil)

	assert.False(t, seenAny, "no connection may be visible while the old one is being cancelled")
	assert.Nil(t, seen)
	conn, ok := u.Connection()
	require.True(t, ok)
	assert.Same(t, second, conn)
}

func TestRegistry_UnbindReleasesContext(t *testing.T) {
	reg := NewRegistry()
	u := reg.GetOrCreateUser(domain.User{ID: "a", Username: "alice"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := &fakeConn{}
	reg.BindSignal(u, conn, cancel)
	require.NoError(t, ctx.Err())

	require.True(t, reg.Unbind(u, conn))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRegistry_SendGoesToLiveConnection(t *testing.T) {
	reg := NewRegistry()
	p := newPlayer(reg, "a", "alice")

	reg.Send("a", domain.Hello("alice"))
	reg.Send("nobody", domain.Hello("x"))

	hello := p.conn.ofType(domain.EventHello)
	require.Len(t, hello, 1)
	assert.Equal(t, "alice", hello[0].Username)
}

func register(reg *Registry, id string) {
	reg.GetOrCreateUser(domain.User{ID: domain.UserID(id), Username: id})
}

func TestRegistry_SweepPrunesCollectedUsers(t *testing.T) {
	reg := NewRegistry()
	kept := newPlayer(reg, "kept", "kept")
	register(reg, "gone")

	require.Eventually(t, func() bool {
		runtime.GC()
		_, ok := reg.Get("gone")
		return !ok
	}, time.Second, 10*time.Millisecond)

	alive, pruned := reg.Sweep()
	assert.Equal(t, 1, alive)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, reg.Len())
	assert.Len(t, kept.conn.ofType(domain.EventPing), 1)
	runtime.KeepAlive(kept.User)
}

func TestLockPair_OppositeOrdersDoNotDeadlock(t *testing.T) {
	reg := NewRegistry()
	a := reg.GetOrCreateUser(domain.User{ID: "a"})
	b := reg.GetOrCreateUser(domain.User{ID: "b"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, pair := range [][2]*User{{a, b}, {b, a}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 1000 {
					unlock := LockPair(pair[0], pair[1])
					unlock()
				}
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockPair deadlocked")
	}

	unlock := LockPair(a, a)
	unlock()
}

func TestSimplePolicy(t *testing.T) {
	p := SimplePolicy{}
	assert.Equal(t, NoAction, p.OnConnectionLost(Idle()))
	assert.Equal(t, LeaveRoom, p.OnConnectionLost(InRoom(1)))
	assert.Equal(t, ForfeitAfterGrace, p.OnConnectionLost(InMatch(&MatchHandle{})))
}
