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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestInjectExtractHeaders_RoundTrip(t *testing.T) {
	// Use the W3C propagator directly rather than the process-global one,
	// so the test does not depend on SetGlobalPropagator having run.
	prop := W3CPropagator()

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	headers := map[string]string{"idempotency-key": "idem-1"}
	prop.Inject(ctx, propagation.MapCarrier(headers))
	require.NotEmpty(t, headers["traceparent"])
	assert.Equal(t, "idem-1", headers["idempotency-key"], "existing headers must survive injection")

	extracted := prop.Extract(context.Background(), propagation.MapCarrier(headers))
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, spanCtx.TraceID(), got.TraceID())
	assert.Equal(t, spanCtx.SpanID(), got.SpanID())
}
