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

// Package observability defines the narrow tracing vocabulary the
// durability core instruments against, keeping the OpenTelemetry SDK an
// implementation detail behind internal/tracing the same way oplog.Store
// keeps the storage tier behind an interface. This package holds no
// implementation; internal/tracing provides the OpenTelemetry-backed one.
package observability

// SpanKind categorizes the work a span represents.
type SpanKind string

const (
	// SpanKindInternal is work inside the node: replay, the status fold,
	// scheduler ticks.
	SpanKindInternal SpanKind = "internal"

	// SpanKindClient is an outbound call: a worker's live HTTP host call
	// or a worker-to-worker RPC it initiates.
	SpanKindClient SpanKind = "client"

	// SpanKindServer is an inbound request: a control-plane call or a
	// gateway-dispatched invocation.
	SpanKindServer SpanKind = "server"

	// SpanKindProducer is enqueueing deferred work: a scheduled action or
	// a pending invocation.
	SpanKindProducer SpanKind = "producer"

	// SpanKindConsumer is dequeueing that work: the executor draining a
	// worker's invocation queue.
	SpanKindConsumer SpanKind = "consumer"
)

// StatusCode is a span's outcome.
type StatusCode int

const (
	// StatusCodeUnset means no status was explicitly set.
	StatusCodeUnset StatusCode = 0

	// StatusCodeOK means the spanned work completed.
	StatusCodeOK StatusCode = 1

	// StatusCodeError means it failed; the message carries the
	// golemerr classification.
	StatusCodeError StatusCode = 2
)

// TraceContext is the W3C trace-context tuple a span exposes for
// propagation into outgoing requests.
type TraceContext struct {
	// TraceID uniquely identifies the trace.
	TraceID string

	// SpanID identifies the current span.
	SpanID string

	// TraceFlags carries trace-level flags (sampled, debug).
	TraceFlags byte

	// TraceState holds vendor-specific trace information.
	TraceState string
}
