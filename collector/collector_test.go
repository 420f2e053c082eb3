package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
	"github.com/poiesic/snapshelf/storage/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticProbe returns a fixed value or error.
type staticProbe struct {
	name  string
	value any
	err   error
}

func (p *staticProbe) Name() string { return p.name }

func (p *staticProbe) Probe(context.Context) (any, error) {
	return p.value, p.err
}

// failingBackend rejects every operation.
type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }
func (failingBackend) Save(context.Context, *core.Record) (storage.Outcome, error) {
	return 0, storage.ErrMediumUnavailable
}
func (failingBackend) List(context.Context) ([]*core.Record, error) {
	return nil, storage.ErrMediumUnavailable
}
func (failingBackend) Clear(context.Context) error { return storage.ErrMediumUnavailable }
func (failingBackend) Close() error                { return nil }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestCollector(t *testing.T, backend storage.Backend, opts ...Option) *Collector {
	t.Helper()
	c, err := New(backend, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Release)
	return c
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrBackendRequired)
}

func TestNew_InvalidOptions(t *testing.T) {
	backend := kv.New(kv.NewMemorySlot(0))
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "nil probe", opt: WithProbes(nil)},
		{name: "reserved name", opt: WithProbes(&staticProbe{name: SessionKey})},
		{name: "duplicate name", opt: WithProbes(&staticProbe{name: "ip"}, &staticProbe{name: "ip"})},
		{name: "empty session", opt: WithSession("")},
		{name: "nil clock", opt: WithClock(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(backend, tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(kv.NewMemorySlot(0))
	now := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)

	c := newTestCollector(t, backend,
		WithSession("session-1"),
		WithClock(fixedClock(now)),
		WithPoolSize(4),
		WithProbes(
			&staticProbe{name: "ip", value: "203.0.113.7"},
			&staticProbe{name: "location", value: map[string]any{"city": "Lisbon"}},
			&staticProbe{name: "broken", err: errors.New("lookup timed out")},
		),
	)

	record, outcome, err := c.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Persisted, outcome)
	assert.Equal(t, "2024-05-01T10:00:00.123Z", record.Timestamp)

	var payload map[string]any
	require.NoError(t, record.Payload.Decode(&payload))
	assert.Equal(t, "session-1", payload[SessionKey])
	assert.Equal(t, "203.0.113.7", payload["ip"])
	assert.Equal(t, map[string]any{"city": "Lisbon"}, payload["location"])
	assert.NotContains(t, payload, "broken", "failed probes are omitted")

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, record.Timestamp, history[0].Timestamp)
}

func TestCollect_UniqueTimestamps(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(kv.NewMemorySlot(0))
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	c := newTestCollector(t, backend, WithClock(fixedClock(now)))

	var stamps []string
	for i := 0; i < 3; i++ {
		record, _, err := c.Collect(ctx)
		require.NoError(t, err)
		stamps = append(stamps, record.Timestamp)
	}
	assert.Equal(t, []string{
		"2024-05-01T10:00:00.000Z",
		"2024-05-01T10:00:00.001Z",
		"2024-05-01T10:00:00.002Z",
	}, stamps)

	history, err := c.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestCollect_ClockGoesBackwards(t *testing.T) {
	backend := kv.New(kv.NewMemorySlot(0))
	times := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC),
	}
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return next
	}

	c := newTestCollector(t, backend, WithClock(clock))
	first, _, err := c.Collect(context.Background())
	require.NoError(t, err)
	second, _, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01T10:00:05.000Z", first.Timestamp)
	assert.Equal(t, "2024-05-01T10:00:05.001Z", second.Timestamp)
}

func TestCollect_BackendFailure(t *testing.T) {
	c := newTestCollector(t, failingBackend{})

	_, _, err := c.Collect(context.Background())
	assert.ErrorIs(t, err, storage.ErrMediumUnavailable)
}

func TestCollect_Released(t *testing.T) {
	c, err := New(kv.New(kv.NewMemorySlot(0)))
	require.NoError(t, err)
	c.Release()

	_, _, err = c.Collect(context.Background())
	assert.ErrorIs(t, err, ErrReleased)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	c := newTestCollector(t, kv.New(kv.NewMemorySlot(0)))

	_, _, err := c.Collect(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Reset(ctx))

	history, err := c.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSession_DefaultIsUnique(t *testing.T) {
	backend := kv.New(kv.NewMemorySlot(0))
	a := newTestCollector(t, backend)
	b := newTestCollector(t, backend)

	assert.NotEmpty(t, a.Session())
	assert.NotEqual(t, a.Session(), b.Session())
}
