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

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// W3CPropagator returns the composite W3C propagator (traceparent +
// baggage) this node uses for cross-process trace context.
func W3CPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// SetGlobalPropagator installs the W3C propagator process-wide; called
// once at node start alongside provider construction.
func SetGlobalPropagator() {
	otel.SetTextMapPropagator(W3CPropagator())
}

// InjectHeaders writes ctx's trace context into a header map, the shape a
// worker's outgoing HTTP host call carries its headers in. Injection
// happens on the live path only: a replayed call is answered from the
// journal and emits no request, so nothing is injected - and the recorded
// response stays byte-identical across replays since the journaled
// payload never contains these request headers.
func InjectHeaders(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractHeaders reads trace context from a header map into ctx, used
// when an incoming-http-request payload dispatched by the gateway carries
// a traceparent from the original caller.
func ExtractHeaders(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
