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


package core

import (
	"encoding/json"
	"fmt"
)

// ValidateRecord validates a Record before it is handed to a backend.
//
// Validation rules:
//   - Timestamp must not be empty
//   - Timestamp must parse as ISO-8601 (RFC 3339)
//   - Payload, when present, must be valid JSON
//
// NOT validated:
//   - Payload contents (opaque to storage)
//   - Timestamp uniqueness (enforced by each backend)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Timestamp == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTimestamp)
	}

	if _, err := ParseTimestamp(record.Timestamp); err != nil {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrMalformedTimestamp, record.Timestamp)
	}

	if len(record.Payload) > 0 && !json.Valid(record.Payload) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMalformedPayload)
	}

	return nil
}

// IsValidTimestamp reports whether s is a usable record key.
func IsValidTimestamp(s string) bool {
	if s == "" {
		return false
	}
	_, err := ParseTimestamp(s)
	return err == nil
}
