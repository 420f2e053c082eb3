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


// Package storage provides the storage abstraction layer for snapshelf.
//
// This package defines the Backend contract that every medium implements,
// the retention policy shared by all of them, and the Chain that strings
// backends together into an explicit fallback order.
//
// # Backends
//
// Three interchangeable media implement Backend:
//
//   - kv: a single named slot holding a serialized record list (memory, bbolt or redis)
//   - badger: an embedded transactional store keyed by timestamp
//   - remote: an HTTP persistence service
//
// Each backend reports its own failures. Falling back to another medium is
// the Chain's job, not the backend's:
//
//	primary := badger.New(badger.WithDir(dir))
//	local := kv.New(kv.NewMemorySlot(0))
//	store, err := storage.NewChain([]storage.Backend{primary, local})
//
// # Retention
//
// Every backend keeps at most a configured cap of records (DefaultCap
// unless set). Retain and Surplus are the pure functions that decide which
// records survive; backends apply them before reporting a save as done, so
// the cap holds whenever Save returns a nil error.
//
// # Ordering
//
// Record timestamps are ISO-8601 strings and double as keys. Lexical order
// is chronological order, and List always returns newest first.
//
// # Errors
//
// Backends wrap one of ErrMediumUnavailable, ErrTransactionFailed,
// ErrSerializationFailed or ErrNetworkFailure. Serialization problems are
// recovered inside the backend. A caller only sees a *PersistenceError when
// every medium in the chain failed.
//
// # Context Support
//
// All Backend methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
