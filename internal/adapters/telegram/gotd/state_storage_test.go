package gotd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gotd/td/telegram/updates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStateStoragePersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "42.json")

	st := newJSONStateStorage(path)
	_, ok, err := st.GetState(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, st.SetPts(ctx, 42, 1), "pts without base state")

	require.NoError(t, st.SetState(ctx, 42, updates.State{Pts: 10, Qts: 1, Date: 100, Seq: 5}))
	require.NoError(t, st.SetPts(ctx, 42, 11))
	require.NoError(t, st.SetDateSeq(ctx, 42, 200, 6))
	require.NoError(t, st.SetChannelPts(ctx, 42, 777, 3))

	reopened := newJSONStateStorage(path)
	got, ok, err := reopened.GetState(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, updates.State{Pts: 11, Qts: 1, Date: 200, Seq: 6}, got)

	pts, ok, err := reopened.GetChannelPts(ctx, 42, 777)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, pts)

	seen := map[int64]int{}
	require.NoError(t, reopened.ForEachChannels(ctx, 42, func(_ context.Context, id int64, pts int) error {
		seen[id] = pts
		return nil
	}))
	assert.Equal(t, map[int64]int{777: 3}, seen)

	// Новое базовое состояние сбрасывает каналы.
	require.NoError(t, reopened.SetState(ctx, 42, updates.State{Pts: 1}))
	_, ok, err = reopened.GetChannelPts(ctx, 42, 777)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONStateStorageInMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := newJSONStateStorage("")
	require.NoError(t, st.SetState(ctx, 1, updates.State{Pts: 3}))
	require.NoError(t, st.SetQts(ctx, 1, 9))
	got, ok, err := st.GetState(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 9, got.Qts)
	assert.Error(t, st.ForEachChannels(ctx, 2, func(context.Context, int64, int) error { return nil }))
}
