// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/snapshelf/core"
	"github.com/poiesic/snapshelf/storage"
)

// SessionKey is the payload attribute holding the collector's session id.
const SessionKey = "session"

// Collector captures records from its probes and saves them to a backend.
type Collector struct {
	backend storage.Backend
	probes  []Probe
	pool    *ants.Pool
	session string
	now     func() time.Time
	logger  *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// Option configures a Collector.
type Option func(*Collector) error

// WithProbes adds probes to run on every capture.
// Probe names must be unique and must not be SessionKey.
func WithProbes(probes ...Probe) Option {
	return func(c *Collector) error {
		for _, p := range probes {
			if p == nil {
				return errors.New("nil probe")
			}
			name := p.Name()
			if name == SessionKey {
				return fmt.Errorf("probe name %q is reserved", name)
			}
			for _, existing := range c.probes {
				if existing.Name() == name {
					return fmt.Errorf("duplicate probe name %q", name)
				}
			}
			c.probes = append(c.probes, p)
		}
		return nil
	}
}

// WithPoolSize sets the worker pool size for running probes.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Collector) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		return nil
	}
}

// WithSession sets the session id recorded in every payload.
// Default is a random UUID.
func WithSession(id string) Option {
	return func(c *Collector) error {
		if id == "" {
			return errors.New("empty session id")
		}
		c.session = id
		return nil
	}
}

// WithClock replaces time.Now as the capture clock.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) error {
		if now == nil {
			return errors.New("nil clock")
		}
		c.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a collector that saves to backend.
// Call Release when done to stop the worker pool.
func New(backend storage.Backend, opts ...Option) (*Collector, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		backend: backend,
		pool:    pool,
		session: uuid.NewString(),
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(c); optErr != nil {
			c.Release()
			return nil, optErr
		}
	}
	return c, nil
}

// Session returns the id stamped into every record.
func (c *Collector) Session() string {
	return c.session
}

// Collect runs every probe, builds a record and saves it. The outcome tells
// whether the record reached the primary medium or a fallback.
func (c *Collector) Collect(ctx context.Context) (*core.Record, storage.Outcome, error) {
	if c.pool.IsClosed() {
		return nil, 0, ErrReleased
	}

	attrs, err := c.probe(ctx)
	if err != nil {
		return nil, 0, err
	}
	attrs[SessionKey] = c.session

	record, err := core.NewRecord(c.stamp(), attrs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode capture: %w", err)
	}

	outcome, err := c.backend.Save(ctx, record)
	if err != nil {
		return nil, 0, err
	}
	if outcome == storage.PersistedDegraded {
		c.logger.Warn("capture saved to fallback storage", "timestamp", record.Timestamp)
	}
	c.logger.Debug("capture saved", "timestamp", record.Timestamp, "outcome", outcome)
	return record, outcome, nil
}

// History returns the stored records, newest first.
func (c *Collector) History(ctx context.Context) ([]*core.Record, error) {
	return c.backend.List(ctx)
}

// Reset removes every stored record.
func (c *Collector) Reset(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Release stops the worker pool. The backend is left open; its owner
// closes it. The collector should not be used after calling Release.
func (c *Collector) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// probe runs every probe on the pool and gathers the successful results
// by probe name.
func (c *Collector) probe(ctx context.Context) (map[string]any, error) {
	attrs := make(map[string]any, len(c.probes)+1)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, p := range c.probes {
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			value, err := p.Probe(ctx)
			if err != nil {
				c.logger.Warn("probe failed, omitting from capture", "probe", p.Name(), "err", err)
				return
			}
			mu.Lock()
			attrs[p.Name()] = value
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			if errors.Is(err, ants.ErrPoolClosed) {
				return nil, ErrReleased
			}
			return nil, fmt.Errorf("failed to schedule probe %s: %w", p.Name(), err)
		}
	}
	wg.Wait()
	return attrs, nil
}

// stamp returns the capture time, moved past the previous capture when the
// clock has not advanced by at least a millisecond.
func (c *Collector) stamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC().Truncate(time.Millisecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Millisecond)
	}
	c.last = now
	return now
}
