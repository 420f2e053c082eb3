package kv

import (
	"context"
	"sync"

	"github.com/poiesic/snapshelf/storage"
)

// Slot is a single named cell holding one serialized value.
// It is the medium behind the ephemeral backend.
type Slot interface {
	// Get returns the slot's contents. ok is false when the slot is empty.
	Get(ctx context.Context) (data []byte, ok bool, err error)

	// Set overwrites the slot in one write.
	Set(ctx context.Context, data []byte) error

	// Delete empties the slot. Deleting an empty slot succeeds.
	Delete(ctx context.Context) error

	// Close releases the slot's medium.
	Close() error
}

// MemorySlot is a process-local slot with an optional byte quota.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	ok     bool
	quota  int
	closed bool
}

var _ Slot = (*MemorySlot)(nil)

// NewMemorySlot creates an empty slot. A quota of 0 disables the size limit.
func NewMemorySlot(quota int) *MemorySlot {
	return &MemorySlot{quota: quota}
}

// Get returns a copy of the slot's contents.
func (s *MemorySlot) Get(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, storage.ErrStorageClosed
	}
	if !s.ok {
		return nil, false, nil
	}
	return append([]byte(nil), s.data...), true, nil
}

// Set stores a copy of data, or fails with storage.ErrQuotaExceeded.
func (s *MemorySlot) Set(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}
	if s.quota > 0 && len(data) > s.quota {
		return storage.ErrQuotaExceeded
	}
	s.data = append([]byte(nil), data...)
	s.ok = true
	return nil
}

// Delete empties the slot.
func (s *MemorySlot) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStorageClosed
	}
	s.data = nil
	s.ok = false
	return nil
}

// Close marks the slot closed. Its contents are dropped.
func (s *MemorySlot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	s.ok = false
	return nil
}
