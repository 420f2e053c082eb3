package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
)

// DefaultSlotName is the key under which slot media store the record list.
const DefaultSlotName = "snapshelf:records"

// Backend is the ephemeral key-value backend. It keeps every record in one
// slot as a serialized list, oldest first. A slot that is over quota sheds
// its oldest records and the save is reported as storage.PersistedDegraded.
// A save that leaves the record nowhere fails with storage.ErrMediumUnavailable.
type Backend struct {
	slot   Slot
	cap    int
	logger *slog.Logger
	mu     sync.Mutex
}

var _ storage.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithCap sets how many records the slot retains.
// Default is storage.DefaultCap.
func WithCap(cap int) Option {
	return func(b *Backend) {
		b.cap = storage.NormalizeCap(cap)
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
	}
}

// New creates an ephemeral backend over slot.
func New(slot Slot, opts ...Option) *Backend {
	b := &Backend{
		slot:   slot,
		cap:    storage.DefaultCap,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns "kv".
func (b *Backend) Name() string {
	return "kv"
}

// Save appends the record, drops the oldest records beyond the cap and
// rewrites the slot. A stored record with the same timestamp is replaced.
func (b *Backend) Save(ctx context.Context, record *core.Record) (storage.Outcome, error) {
	if err := core.ValidateRecord(record); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Overwriting after a failed read could wipe records we never saw.
	records, err := b.load(ctx)
	if err != nil {
		return 0, err
	}

	kept := records[:0]
	for _, r := range records {
		if r.Timestamp != record.Timestamp {
			kept = append(kept, r)
		}
	}
	kept = append(kept, record.Clone())

	return b.store(ctx, storage.Retain(kept, b.cap))
}

// List returns the slot's records, newest first.
func (b *Backend) List(ctx context.Context) ([]*core.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	records, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	storage.SortNewestFirst(records)
	return records, nil
}

// Clear deletes the slot.
func (b *Backend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.slot.Delete(ctx); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, err)
	}
	return nil
}

// Close closes the underlying slot.
func (b *Backend) Close() error {
	return b.slot.Close()
}

// load reads the slot. A missing or corrupt slot yields an empty list;
// only a slot that cannot be read at all is an error.
func (b *Backend) load(ctx context.Context) ([]*core.Record, error) {
	data, ok, err := b.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, err)
	}
	if !ok {
		return []*core.Record{}, nil
	}
	records, err := storage.UnmarshalRecords(data)
	if err != nil {
		b.logger.Warn("kv slot is corrupt, treating as empty", "err", err)
		return []*core.Record{}, nil
	}
	return records, nil
}

// store writes records to the slot, shedding the oldest while the slot
// reports it is over quota. The newest record is never shed.
func (b *Backend) store(ctx context.Context, records []*core.Record) (storage.Outcome, error) {
	outcome := storage.Persisted
	for {
		data, err := storage.MarshalRecords(records)
		if err != nil {
			return 0, err
		}

		err = b.slot.Set(ctx, data)
		if err == nil {
			return outcome, nil
		}
		if errors.Is(err, storage.ErrQuotaExceeded) && len(records) > 1 {
			b.logger.Warn("kv slot over quota, shedding oldest record", "timestamp", records[0].Timestamp)
			records = records[1:]
			outcome = storage.PersistedDegraded
			continue
		}
		return 0, fmt.Errorf("%w: %w", storage.ErrMediumUnavailable, err)
	}
}
