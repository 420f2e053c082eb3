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


// Package collector captures observation snapshots and hands them to a
// storage backend.
//
// A Collector runs its Probes concurrently on a worker pool, merges their
// attributes into one record stamped with the capture time, and saves it.
// The backend is injected explicitly; any storage.Backend works, including
// a storage.Chain.
//
// A failing probe is logged and left out of the record. It never fails the
// capture. Wrap a probe in Cached to fall back to its last good value.
//
// Timestamps are strictly increasing per Collector: a capture that would
// reuse the previous millisecond is moved 1ms past it, so records never
// collide on their key.
package collector
