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

// Package transport is the network layer under a worker's outgoing HTTP
// host calls. Everything above it is durability machinery: the hostfunc
// layer derives the idempotency key, journals the outcome, and never
// re-issues a journaled request, so this package only has to actually
// deliver a request once, with the auth and retry behavior the target
// needs. Transports compose as decorators: HTTPTransport is the base, and
// SigningTransport/OAuth2Transport wrap another Transport to inject
// credentials before delegating.
package transport

import "context"

// Transport delivers one outgoing worker request.
type Transport interface {
	// Execute sends req and returns the response the remote produced,
	// whatever its status code; a *TransportError is returned only when no
	// response was obtained at all (connection, timeout, credential
	// failure, invalid request).
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Name identifies the transport in logs ("http", "aws-sigv4", "oauth2").
	Name() string

	// SetRateLimiter bounds outbound request rate; limiting happens before
	// delivery so a journaled result is never delayed retroactively.
	SetRateLimiter(limiter RateLimiter)
}

// Request is an outgoing worker HTTP request, already carrying the
// idempotency-key header the hostfunc layer derived.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is what came back from the remote. The hostfunc layer journals
// it verbatim (as a SerializableResponse), so nothing here may depend on
// local state that would differ between the first execution and a replay
// reading the journal.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
}

// RateLimiter blocks until an outbound request is allowed.
type RateLimiter interface {
	// Wait blocks until a request may proceed, or returns ctx's error.
	Wait(ctx context.Context) error
}
