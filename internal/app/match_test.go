package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Hexo/internal/domain"
	"github.com/dkeye/Hexo/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFixture struct {
	rec  *memRecorder
	a, b player
	h    *MatchHandle
}

func newMatchFixture(t *testing.T) *matchFixture {
	reg := NewRegistry()
	rec := &memRecorder{}
	rooms := NewRoomManager(testMatchOptions(rec))
	t.Cleanup(rooms.Stop)

	f := &matchFixture{rec: rec, a: newPlayer(reg, "a", "alice"), b: newPlayer(reg, "b", "bob")}
	f.h = startMatch(t, rooms, f.a, f.b)
	t.Cleanup(f.h.Stop)
	return f
}

// syncBoth syncs both players and waits until the first game is running.
func (f *matchFixture) syncBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.h.SyncMatch(ctx, f.a.User)
	require.NoError(t, err)
	_, err = f.h.SyncMatch(ctx, f.b.User)
	require.NoError(t, err)

	st, err := f.h.SyncMatch(ctx, f.a.User)
	require.NoError(t, err)
	require.Equal(t, domain.PhasePlaying, st.Phase)
}

func (f *matchFixture) waitGame(t *testing.T, index int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := f.h.SyncMatch(context.Background(), f.a.User)
		return err == nil && st.Phase == domain.PhasePlaying && st.Game != nil && st.Game.Index == index
	}, time.Second, 5*time.Millisecond)
}

func (f *matchFixture) play(t *testing.T, moves ...any) {
	t.Helper()
	for i := 0; i < len(moves); i += 2 {
		p := moves[i].(player)
		cell := moves[i+1].(int)
		require.NoError(t, f.h.UserAction(context.Background(), p.User, engine.Action{Cell: cell}))
	}
}

func TestMatch_SyncStartsFirstGameOnce(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, p := range []player{f.a, f.b, f.a, f.b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.h.SyncMatch(ctx, p.User)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := f.h.SyncMatch(ctx, f.b.User)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePlaying, st.Phase)

	starts := f.a.conn.ofType(domain.EventGameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, 1, starts[0].GameStart.Index)
	assert.Equal(t, engine.First, starts[0].GameStart.YourSide)

	starts = f.b.conn.ofType(domain.EventGameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, engine.Second, starts[0].GameStart.YourSide)
}

func TestMatch_SyncBeforeOpponentWaits(t *testing.T) {
	f := newMatchFixture(t)

	st, err := f.h.SyncMatch(context.Background(), f.b.User)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStarting, st.Phase)
	assert.Equal(t, domain.UserID("b"), st.Info.Users[0].ID, "snapshot is from the viewer's side")
	assert.Empty(t, f.b.conn.ofType(domain.EventGameStart))
}

func TestMatch_NotYourTurnLeavesStateUnchanged(t *testing.T) {
	f := newMatchFixture(t)
	f.syncBoth(t)
	ctx := context.Background()

	err := f.h.UserAction(ctx, f.b.User, engine.Action{Cell: 4})
	assert.ErrorIs(t, err, domain.ErrNotYourTurn)

	st, err := f.h.SyncMatch(ctx, f.a.User)
	require.NoError(t, err)
	require.NotNil(t, st.Game)
	assert.Empty(t, st.Game.Actions)
	assert.True(t, st.Game.YourTurn)
	assert.Empty(t, f.a.conn.gameEvents(domain.GameUserPlay))

	err = f.h.UserAction(ctx, f.a.User, engine.Action{Cell: 42})
	assert.ErrorIs(t, err, domain.ErrGameAction)
}

func TestMatch_BestOfThreeEndsTwoNil(t *testing.T) {
	f := newMatchFixture(t)
	f.syncBoth(t)
	a, b := f.a, f.b

	// game 1: a moves first and completes the top row
	f.play(t, a, 0, b, 3, a, 1, b, 4, a, 2)
	ends := a.conn.gameEvents(domain.GameEnd)
	require.Len(t, ends, 1)
	assert.True(t, ends[0].YouWon)
	assert.False(t, ends[0].MatchOver)
	assert.Equal(t, domain.Pair[uint32]{1, 0}, ends[0].Scores)
	assert.Equal(t, domain.Pair[uint32]{0, 1}, b.conn.gameEvents(domain.GameEnd)[0].Scores)

	// game 2: b moves first, a completes the top row again
	f.waitGame(t, 2)
	starts := b.conn.ofType(domain.EventGameStart)
	require.Len(t, starts, 2)
	assert.Equal(t, engine.First, starts[1].GameStart.YourSide)
	f.play(t, b, 3, a, 0, b, 4, a, 1, b, 8, a, 2)

	gameEndsB := b.conn.gameEvents(domain.GameEnd)
	require.Len(t, gameEndsB, 2)
	assert.True(t, gameEndsB[1].MatchOver)
	assert.False(t, gameEndsB[1].YouWon)
	assert.True(t, a.conn.gameEvents(domain.GameEnd)[1].MatchOver)

	endA := a.conn.gameEvents(domain.GameMatchEnd)
	endB := b.conn.gameEvents(domain.GameMatchEnd)
	require.Len(t, endA, 1)
	require.Len(t, endB, 1)
	assert.True(t, endA[0].YouWon)
	assert.Equal(t, domain.Pair[uint32]{2, 0}, endA[0].Scores)
	assert.False(t, endB[0].YouWon)
	assert.Equal(t, domain.Pair[uint32]{0, 2}, endB[0].Scores)
	assert.Equal(t, domain.EndByScore, endA[0].Reason)

	assert.True(t, a.CurrentStatus().IsIdle())
	assert.True(t, b.CurrentStatus().IsIdle())

	select {
	case <-f.h.Done():
	case <-time.After(time.Second):
		t.Fatal("match loop still running")
	}

	require.Eventually(t, func() bool { return len(f.rec.all()) == 1 }, time.Second, 5*time.Millisecond)
	rec := f.rec.all()[0]
	assert.Equal(t, 0, rec.WinnerSlot)
	assert.Len(t, rec.Games, 2)
	assert.Equal(t, 1, rec.Games[1].FirstSlot)
}

func TestMatch_ForfeitAfterGrace(t *testing.T) {
	f := newMatchFixture(t)
	f.syncBoth(t)

	require.NoError(t, f.h.ParticipantLost(context.Background(), f.b.User))

	select {
	case <-f.h.Done():
	case <-time.After(time.Second):
		t.Fatal("forfeit never happened")
	}
	endA := f.a.conn.gameEvents(domain.GameMatchEnd)
	require.Len(t, endA, 1)
	assert.True(t, endA[0].YouWon)
	assert.Equal(t, domain.EndByForfeit, endA[0].Reason)
	assert.Equal(t, domain.Pair[uint32]{0, 0}, endA[0].Scores)
	assert.True(t, f.b.CurrentStatus().IsIdle())
}

func TestMatch_ResyncWithinGraceKeepsMatch(t *testing.T) {
	f := newMatchFixture(t)
	f.syncBoth(t)
	ctx := context.Background()

	require.NoError(t, f.h.ParticipantLost(ctx, f.b.User))
	_, err := f.h.SyncMatch(ctx, f.b.User)
	require.NoError(t, err)

	time.Sleep(3 * testMatchOptions(nil).DisconnectGrace)
	assert.Empty(t, f.a.conn.gameEvents(domain.GameMatchEnd))
	assert.Equal(t, StatusInMatch, f.b.CurrentStatus().Kind)
}

func TestMatch_PlayingWithinGraceKeepsMatch(t *testing.T) {
	f := newMatchFixture(t)
	f.syncBoth(t)
	ctx := context.Background()

	require.NoError(t, f.h.ParticipantLost(ctx, f.a.User))
	require.NoError(t, f.h.UserAction(ctx, f.a.User, engine.Action{Cell: 0}))

	time.Sleep(3 * testMatchOptions(nil).DisconnectGrace)
	assert.Empty(t, f.b.conn.gameEvents(domain.GameMatchEnd))
	assert.Equal(t, StatusInMatch, f.a.CurrentStatus().Kind)

	st, err := f.h.SyncMatch(ctx, f.b.User)
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePlaying, st.Phase)
}

func TestMatch_OutsiderIsRejected(t *testing.T) {
	f := newMatchFixture(t)
	outsider := newPlayer(NewRegistry(), "z", "zed")

	_, err := f.h.SyncMatch(context.Background(), outsider.User)
	assert.ErrorIs(t, err, domain.ErrNotInMatch)
	err = f.h.UserAction(context.Background(), outsider.User, engine.Action{Cell: 0})
	assert.ErrorIs(t, err, domain.ErrNotInMatch)
}
