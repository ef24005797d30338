// Copyright 2025 Tom Barlow
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

package transport

import (
	"fmt"
	"time"
)

// ErrorType classifies a transport failure. The classification drives two
// things: whether the in-flight attempt may be retried before anything is
// journaled, and the stable message that ends up in the journal when every
// attempt fails.
type ErrorType string

const (
	// ErrorTypeConnection marks a network or DNS failure.
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeTimeout marks a request deadline exceeded.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeAuth marks a credential failure (loading, signing, or token
	// acquisition) before the request ever reached the remote.
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeInvalidReq marks a request that cannot be delivered as given.
	ErrorTypeInvalidReq ErrorType = "invalid_request"

	// ErrorTypeCancelled marks a context cancelled before delivery.
	ErrorTypeCancelled ErrorType = "cancelled"
)

// TransportError is returned when no response was obtained. Its Error()
// text is what gets journaled, so it must be deterministic for a given
// failure: no timestamps, no attempt counters, no local addresses.
type TransportError struct {
	Type    ErrorType
	Message string

	// Retryable reports whether re-delivering the same request could
	// plausibly succeed; the retry loop in HTTPTransport consults it.
	Retryable bool

	// RetryAfter is a server-requested delay before the next attempt,
	// zero when the server expressed no preference.
	RetryAfter time.Duration

	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap supports errors.Is/errors.As over the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsType reports whether the error carries the given classification.
func (e *TransportError) IsType(t ErrorType) bool {
	return e.Type == t
}
