package storage

import (
	"context"

	"github.com/poiesic/snapshelf/core"
)

// Outcome tags a successful save with how it was persisted.
type Outcome int

const (
	// Persisted means the record was written to the intended medium.
	Persisted Outcome = iota + 1
	// PersistedDegraded means the save completed, but only on a fallback
	// medium or on a best-effort medium that could not write.
	PersistedDegraded
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Persisted:
		return "persisted"
	case PersistedDegraded:
		return "persisted-degraded"
	default:
		return "unknown"
	}
}

// Backend is the capability every storage medium implements.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Save persists one record and applies retention.
	// When Save returns a nil error the cap invariant holds.
	Save(ctx context.Context, record *core.Record) (Outcome, error)

	// List returns every surviving record, newest first.
	// An empty or corrupt store yields an empty slice, not an error.
	List(ctx context.Context) ([]*core.Record, error)

	// Clear removes every record. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Close releases the medium. Calling Close more than once is safe.
	Close() error
}
