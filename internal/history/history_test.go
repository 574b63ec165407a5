package history

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Hexo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, a, b domain.UserID) domain.MatchRecord {
	return domain.MatchRecord{
		ID:    domain.MatchID(id),
		Users: domain.Pair[domain.User]{{ID: a}, {ID: b}},
	}
}

func TestMemory_ListNewestFirstForUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.Record(ctx, record("m1", "a", "b")))
	require.NoError(t, m.Record(ctx, record("m2", "c", "d")))
	require.NoError(t, m.Record(ctx, record("m3", "b", "c")))

	got, err := m.List(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.MatchID("m3"), got[0].ID)
	assert.Equal(t, domain.MatchID("m1"), got[1].ID)

	got, err = m.List(ctx, "b", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = m.List(ctx, "z", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_KeepsOnlyMostRecent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2)
	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, m.Record(ctx, record(id, "a", "b")))
	}
	got, err := m.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.MatchID("m3"), got[0].ID)
	assert.Equal(t, domain.MatchID("m2"), got[1].ID)
}

type failing struct{ err error }

func (f failing) Record(context.Context, domain.MatchRecord) error { return f.err }

func TestFanout_RecordsEverywhere(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0)
	boom := errors.New("boom")

	err := Fanout{failing{boom}, mem}.Record(ctx, record("m1", "a", "b"))
	assert.ErrorIs(t, err, boom)

	got, err := mem.List(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTee_ReadsFromStoreRecordsEverywhere(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(0)
	mirror := NewMemory(0)

	s := Tee(store, mirror)
	require.NoError(t, s.Record(ctx, record("m1", "a", "b")))

	got, err := s.List(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MatchID("m1"), got[0].ID)

	mirrored, err := mirror.List(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, mirrored, 1)
}
