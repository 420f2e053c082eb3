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


// Package snapshelf keeps a bounded, time-ordered history of observation
// snapshots on whichever medium is available.
//
// A Store owns a storage chain chosen by Config.Backend: an embedded
// transactional database, a remote HTTP service or an ephemeral key-value
// slot. The ephemeral slot is always the last fallback, so a capture is
// kept even when the preferred medium is down.
//
//	store, err := snapshelf.Open(snapshelf.WithBackend(snapshelf.KindTransactional))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	c, err := store.NewCollector(collector.WithProbes(collector.HostProbe{}))
package snapshelf

import (
	"log/slog"
	"sync"

	"github.com/poiesic/snapshelf/collector"
	"github.com/poiesic/snapshelf/storage"
)

// Store owns a storage chain and the collectors created from it.
type Store struct {
	chain  *storage.Chain
	config *Config
	logger *slog.Logger

	mu         sync.Mutex
	collectors []*collector.Collector
	closed     bool
}

// Open builds the storage chain from the default config with opts applied.
func Open(opts ...Option) (*Store, error) {
	return OpenConfig(NewConfig(opts...))
}

// OpenConfig builds the storage chain described by cfg.
func OpenConfig(cfg *Config) (*Store, error) {
	chain, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		chain:  chain,
		config: cfg,
		logger: cfg.Logger,
	}, nil
}

// Backend returns the storage chain. It stays owned by the Store.
func (s *Store) Backend() storage.Backend {
	return s.chain
}

// Config returns the normalized configuration the store was opened with.
func (s *Store) Config() Config {
	return *s.config
}

// NewCollector creates a collector that saves to this store. The store
// releases it on Close.
func (s *Store) NewCollector(opts ...collector.Option) (*collector.Collector, error) {
	c, err := collector.New(s.chain, append([]collector.Option{collector.WithLogger(s.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, c)
	return c, nil
}

// Close releases every collector and closes the storage chain.
// Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, c := range s.collectors {
		c.Release()
	}
	s.collectors = nil

	if err := s.chain.Close(); err != nil {
		s.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}
