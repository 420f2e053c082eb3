package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
	"github.com/poiesic/snapshelf/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSlot(t *testing.T, path string) *Slot {
	t.Helper()
	slot, err := Open(path, "", "")
	require.NoError(t, err)
	return slot
}

func TestSlot_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	slot := openTestSlot(t, filepath.Join(t.TempDir(), "records.db"))
	defer slot.Close()

	_, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, slot.Set(ctx, []byte(`[]`)))
	data, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(data))

	require.NoError(t, slot.Delete(ctx))
	require.NoError(t, slot.Delete(ctx))
	_, ok, err = slot.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	first := openTestSlot(t, path)
	b := kv.New(first, kv.WithCap(2))
	for _, ts := range []string{
		"2024-05-01T10:00:01.000Z",
		"2024-05-01T10:00:02.000Z",
		"2024-05-01T10:00:03.000Z",
	} {
		outcome, err := b.Save(ctx, &core.Record{Timestamp: ts, Payload: core.Payload(`{"ok":true}`)})
		require.NoError(t, err)
		assert.Equal(t, storage.Persisted, outcome)
	}
	require.NoError(t, b.Close())

	second := openTestSlot(t, path)
	defer second.Close()

	records, err := kv.New(second).List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-05-01T10:00:03.000Z", records[0].Timestamp)
	assert.Equal(t, "2024-05-01T10:00:02.000Z", records[1].Timestamp)
}

func TestSlot_Closed(t *testing.T) {
	ctx := context.Background()
	slot := openTestSlot(t, filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, slot.Close())
	require.NoError(t, slot.Close())

	_, _, err := slot.Get(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, slot.Set(ctx, []byte("x")), storage.ErrStorageClosed)
}

func TestSlot_CancelledContext(t *testing.T) {
	slot := openTestSlot(t, filepath.Join(t.TempDir(), "records.db"))
	defer slot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := slot.Set(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "records.db"), "", "")
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
}
