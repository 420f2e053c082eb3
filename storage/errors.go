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


package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/snapshelf/core"
)

var (
	// ErrMediumUnavailable indicates the storage medium could not be opened or reached.
	ErrMediumUnavailable = errors.New("storage medium unavailable")

	// ErrTransactionFailed indicates that a transaction failed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrNetworkFailure indicates a remote call errored or returned a non-success status.
	ErrNetworkFailure = errors.New("network failure")

	// ErrDuplicateKey indicates a record with the same timestamp already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrQuotaExceeded indicates the medium refused a write because it is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")
)

// PersistenceError is the single error surfaced to callers when an
// operation could not complete on any medium.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError wraps err for the given backend and operation.
// An err that is already a *PersistenceError is returned unchanged.
func NewPersistenceError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}

// IsCallerError reports whether err was caused by the request itself rather
// than by the medium. Such errors are not worth retrying elsewhere. A
// cancelled or expired context counts: the caller has abandoned the request.
func IsCallerError(err error) bool {
	return errors.Is(err, core.ErrInvalidRecord) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
