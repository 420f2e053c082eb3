// Package bolt provides a file-backed slot for the ephemeral backend.
// The record list lives under one key of one bucket in a bbolt file, so it
// survives process restarts.
package bolt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/snapshelf/storage"
	"github.com/poiesic/snapshelf/storage/kv"
	bbolt "go.etcd.io/bbolt"
)

// DefaultBucket is the bucket holding the slot key.
const DefaultBucket = "snapshelf"

// OpenTimeout bounds how long Open waits for the file lock.
const OpenTimeout = 1 * time.Second

// Slot is a kv.Slot stored in a bbolt file.
type Slot struct {
	db     *bbolt.DB
	bucket []byte
	key    []byte
	mu     sync.Mutex
	closed bool
}

var _ kv.Slot = (*Slot)(nil)

// Open opens or creates the bbolt file at path and ensures the bucket exists.
func Open(path, bucket, key string) (*Slot, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if key == "" {
		key = kv.DefaultSlotName
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt file %s: %w", storage.ErrMediumUnavailable, path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create bucket %s: %w", storage.ErrMediumUnavailable, bucket, err)
	}

	return &Slot{db: db, bucket: []byte(bucket), key: []byte(key)}, nil
}

// Get returns a copy of the stored value. bbolt values are only valid
// inside the transaction.
func (s *Slot) Get(ctx context.Context) ([]byte, bool, error) {
	if err := s.check(ctx); err != nil {
		return nil, false, err
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket not found: %s", s.bucket)
		}
		if v := b.Get(s.key); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

// Set overwrites the stored value.
func (s *Slot) Set(ctx context.Context, data []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket not found: %s", s.bucket)
		}
		return b.Put(s.key, data)
	})
}

// Delete removes the key. Deleting a missing key succeeds.
func (s *Slot) Delete(ctx context.Context) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete(s.key)
	})
}

// Close closes the bbolt file. Closing twice is a no-op.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Slot) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	return nil
}

