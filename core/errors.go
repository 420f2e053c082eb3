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

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyTimestamp indicates the Timestamp field is empty.
	ErrEmptyTimestamp = errors.New("timestamp cannot be empty")

	// ErrMalformedTimestamp indicates the Timestamp field is not ISO-8601.
	ErrMalformedTimestamp = errors.New("timestamp is not ISO-8601")

	// ErrMalformedPayload indicates the Payload is not valid JSON.
	ErrMalformedPayload = errors.New("payload is not valid JSON")
)
