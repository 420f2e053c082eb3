package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/snapshelf/core"
)

// ErrEmptyChain is returned when a Chain is created without backends.
var ErrEmptyChain = errors.New("chain requires at least one backend")

// Chain is an ordered list of backends tried in sequence.
// The first backend is the primary medium; the rest are fallbacks.
type Chain struct {
	backends []Backend
	logger   *slog.Logger
	metrics  *Metrics
}

var _ Backend = (*Chain)(nil)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithMetrics records operation and fallback counts.
func WithMetrics(metrics *Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = metrics
	}
}

// NewChain creates a chain over backends, primary first.
func NewChain(backends []Backend, opts ...ChainOption) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyChain
	}
	c := &Chain{
		backends: append([]Backend(nil), backends...),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name lists the chained backends in order, e.g. "badger>kv".
func (c *Chain) Name() string {
	names := make([]string, len(c.backends))
	for i, b := range c.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ">")
}

// Backends returns the chained backends, primary first.
func (c *Chain) Backends() []Backend {
	return append([]Backend(nil), c.backends...)
}

// Save writes the record to the first backend that accepts it.
// Succeeding anywhere but the primary yields PersistedDegraded.
// Caller errors (invalid record, duplicate key, a done context) are
// returned without falling back.
func (c *Chain) Save(ctx context.Context, record *core.Record) (Outcome, error) {
	if err := core.ValidateRecord(record); err != nil {
		return 0, NewPersistenceError(c.Name(), "save", err)
	}

	var errs []error
	for i, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return 0, NewPersistenceError(b.Name(), "save", err)
		}
		outcome, err := b.Save(ctx, record)
		c.metrics.observe(b.Name(), "save", err)
		if err == nil {
			if i > 0 {
				outcome = PersistedDegraded
			}
			return outcome, nil
		}
		if err := interrupted(ctx, err); err != nil {
			return 0, NewPersistenceError(b.Name(), "save", err)
		}
		errs = append(errs, err)
		c.fellBack(i, b, "save", err)
	}
	return 0, &PersistenceError{Backend: c.Name(), Op: "save", Err: errors.Join(errs...)}
}

// List reads from the first backend that answers.
func (c *Chain) List(ctx context.Context) ([]*core.Record, error) {
	var errs []error
	for i, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return nil, NewPersistenceError(b.Name(), "list", err)
		}
		records, err := b.List(ctx)
		c.metrics.observe(b.Name(), "list", err)
		if err == nil {
			if records == nil {
				records = []*core.Record{}
			}
			SortNewestFirst(records)
			return records, nil
		}
		if err := interrupted(ctx, err); err != nil {
			return nil, NewPersistenceError(b.Name(), "list", err)
		}
		errs = append(errs, err)
		c.fellBack(i, b, "list", err)
	}
	return nil, &PersistenceError{Backend: c.Name(), Op: "list", Err: errors.Join(errs...)}
}

// Clear wipes every backend in the chain so that no tier keeps records a
// later fallback could resurface. It fails only if no backend could be cleared.
func (c *Chain) Clear(ctx context.Context) error {
	var errs []error
	cleared := false
	for i, b := range c.backends {
		if err := ctx.Err(); err != nil {
			return NewPersistenceError(b.Name(), "clear", err)
		}
		err := b.Clear(ctx)
		c.metrics.observe(b.Name(), "clear", err)
		if err == nil {
			cleared = true
			continue
		}
		if err := interrupted(ctx, err); err != nil {
			return NewPersistenceError(b.Name(), "clear", err)
		}
		errs = append(errs, err)
		c.fellBack(i, b, "clear", err)
	}
	if !cleared {
		return &PersistenceError{Backend: c.Name(), Op: "clear", Err: errors.Join(errs...)}
	}
	return nil
}

// Close closes every backend.
func (c *Chain) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Close(); err != nil {
			c.logger.Error("error closing backend", "backend", b.Name(), "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Chain) fellBack(i int, b Backend, op string, err error) {
	if i == len(c.backends)-1 {
		c.logger.Error("storage operation failed on last backend", "backend", b.Name(), "op", op, "err", err)
		return
	}
	c.metrics.fallback(b.Name(), op)
	c.logger.Warn("storage operation failed, using fallback",
		"backend", b.Name(), "fallback", c.backends[i+1].Name(), "op", op, "err", err)
}

// interrupted returns err when it is a caller error, or the context error
// when ctx ended while the backend was working. Otherwise it returns nil and
// the chain may fall back.
func interrupted(ctx context.Context, err error) error {
	if IsCallerError(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return nil
}
