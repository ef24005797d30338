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
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func sampleParams(traceID trace.TraceID, attrs ...attribute.KeyValue) sdktrace.SamplingParameters {
	return sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          "invoke",
		Attributes:    attrs,
	}
}

func TestNewSampler_DisabledSamplesEverything(t *testing.T) {
	s := NewSampler(SamplerConfig{})
	assert.Equal(t, sdktrace.AlwaysSample().Description(), s.Description())
}

func TestNewSampler_ZeroRateSamplesNothing(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: true, Rate: 0})
	assert.Equal(t, sdktrace.NeverSample().Description(), s.Description())
}

func TestNewSampler_DeterministicByTraceID(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: true, Rate: 0.5})
	id := trace.TraceID{0xde, 0xad, 0xbe, 0xef, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	first := s.ShouldSample(sampleParams(id)).Decision
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.ShouldSample(sampleParams(id)).Decision,
			"the same trace ID must always sample the same way")
	}
}

func TestNewSampler_ErrorBiasForcesSampling(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: true, Rate: 0.000001, AlwaysSampleErrors: true})
	id := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	errored := s.ShouldSample(sampleParams(id, attribute.Bool("error", true)))
	assert.Equal(t, sdktrace.RecordAndSample, errored.Decision)
}
