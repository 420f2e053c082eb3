package kv

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stamp(i int) string {
	return fmt.Sprintf("2024-05-01T10:00:%02d.000Z", i)
}

func newRecord(i int) *core.Record {
	return &core.Record{
		Timestamp: stamp(i),
		Payload:   core.Payload(fmt.Sprintf(`{"seq":%d,"location":{"city":"Lisbon"}}`, i)),
	}
}

func listStamps(t *testing.T, b storage.Backend) []string {
	t.Helper()
	records, err := b.List(context.Background())
	require.NoError(t, err)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Timestamp
	}
	return out
}

// failingSlot fails every call with err.
type failingSlot struct {
	err error
}

func (s *failingSlot) Get(context.Context) ([]byte, bool, error) { return nil, false, s.err }
func (s *failingSlot) Set(context.Context, []byte) error         { return s.err }
func (s *failingSlot) Delete(context.Context) error              { return s.err }
func (s *failingSlot) Close() error                              { return nil }

func TestBackend_CapScenario(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(0), WithCap(3))

	for i := 1; i <= 4; i++ {
		outcome, err := b.Save(ctx, newRecord(i))
		require.NoError(t, err)
		assert.Equal(t, storage.Persisted, outcome)
	}

	assert.Equal(t, []string{stamp(4), stamp(3), stamp(2)}, listStamps(t, b))
}

func TestBackend_CapInvariantDefault(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(0))

	for i := 0; i < storage.DefaultCap+20; i++ {
		rec := &core.Record{Timestamp: fmt.Sprintf("2024-05-01T10:%02d:%02d.000Z", i/60, i%60), Payload: core.Payload(`{}`)}
		_, err := b.Save(ctx, rec)
		require.NoError(t, err)
	}

	records, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, storage.DefaultCap)
	assert.Equal(t, "2024-05-01T10:01:59.000Z", records[0].Timestamp)
	assert.Equal(t, "2024-05-01T10:00:20.000Z", records[len(records)-1].Timestamp)
}

func TestBackend_StorageOrderIsOldestFirst(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot(0)
	b := New(slot)

	for _, i := range []int{3, 1, 2} {
		_, err := b.Save(ctx, newRecord(i))
		require.NoError(t, err)
	}

	data, ok, err := slot.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := storage.UnmarshalRecords(data)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, stamp(1), stored[0].Timestamp)
	assert.Equal(t, stamp(3), stored[2].Timestamp)
}

func TestBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(0))
	rec := newRecord(7)

	_, err := b.Save(ctx, rec)
	require.NoError(t, err)

	records, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.Timestamp, records[0].Timestamp)
	assert.JSONEq(t, string(rec.Payload), string(records[0].Payload))
}

func TestBackend_SameTimestampReplaces(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(0))

	_, err := b.Save(ctx, &core.Record{Timestamp: stamp(1), Payload: core.Payload(`{"v":1}`)})
	require.NoError(t, err)
	_, err = b.Save(ctx, &core.Record{Timestamp: stamp(1), Payload: core.Payload(`{"v":2}`)})
	require.NoError(t, err)

	records, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.JSONEq(t, `{"v":2}`, string(records[0].Payload))
}

func TestBackend_CorruptSlot(t *testing.T) {
	ctx := context.Background()
	slot := NewMemorySlot(0)
	require.NoError(t, slot.Set(ctx, []byte("{definitely not a list")))
	b := New(slot)

	records, err := b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	outcome, err := b.Save(ctx, newRecord(1))
	require.NoError(t, err)
	assert.Equal(t, storage.Persisted, outcome)
	assert.Equal(t, []string{stamp(1)}, listStamps(t, b))
}

func TestBackend_IdempotentClear(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(0))

	_, err := b.Save(ctx, newRecord(1))
	require.NoError(t, err)

	require.NoError(t, b.Clear(ctx))
	require.NoError(t, b.Clear(ctx))
	assert.Empty(t, listStamps(t, b))
}

func TestBackend_QuotaSheddsOldest(t *testing.T) {
	ctx := context.Background()

	one, err := storage.MarshalRecords([]*core.Record{newRecord(1)})
	require.NoError(t, err)
	// Room for two records but not three.
	slot := NewMemorySlot(len(one)*2 + 1)
	b := New(slot, WithCap(10))

	for i := 1; i <= 2; i++ {
		outcome, err := b.Save(ctx, newRecord(i))
		require.NoError(t, err)
		assert.Equal(t, storage.Persisted, outcome)
	}

	// The third record only fits once the oldest is shed.
	outcome, err := b.Save(ctx, newRecord(3))
	require.NoError(t, err)
	assert.Equal(t, storage.PersistedDegraded, outcome)

	assert.Equal(t, []string{stamp(3), stamp(2)}, listStamps(t, b))
}

func TestBackend_QuotaTooSmallFails(t *testing.T) {
	ctx := context.Background()
	b := New(NewMemorySlot(8))

	_, err := b.Save(ctx, newRecord(1))
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.Empty(t, listStamps(t, b))
}

func TestBackend_UnreadableSlot(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	b := New(&failingSlot{err: boom})

	_, err := b.Save(ctx, newRecord(1))
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = b.List(ctx)
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
	assert.ErrorIs(t, err, boom)

	err = b.Clear(ctx)
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
}

func TestBackend_InvalidRecord(t *testing.T) {
	b := New(NewMemorySlot(0))
	_, err := b.Save(context.Background(), &core.Record{})
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
}

func TestBackend_Name(t *testing.T) {
	assert.Equal(t, "kv", New(NewMemorySlot(0)).Name())
}

// fullSlot reads fine but rejects every write.
type fullSlot struct {
	MemorySlot
	err error
}

func (s *fullSlot) Set(context.Context, []byte) error { return s.err }

func TestBackend_WriteFailureIsReported(t *testing.T) {
	ctx := context.Background()
	enospc := errors.New("no space left on device")
	b := New(&fullSlot{err: enospc})

	_, err := b.Save(ctx, newRecord(1))
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
	assert.ErrorIs(t, err, enospc)
	assert.Empty(t, listStamps(t, b))
}

func TestBackend_WriteFailureSurfacesThroughChain(t *testing.T) {
	ctx := context.Background()
	enospc := errors.New("no space left on device")
	primary := New(&failingSlot{err: errors.New("primary down")})
	chain, err := storage.NewChain([]storage.Backend{primary, New(&fullSlot{err: enospc})})
	require.NoError(t, err)

	_, err = chain.Save(ctx, newRecord(5))
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "save", perr.Op)
	assert.ErrorIs(t, err, enospc)
}
