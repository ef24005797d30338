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
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplerConfig configures trace sampling. Sampling must be deterministic
// by trace ID: a replayed invocation re-enters the same spans, and
// sampling them differently across runs would make traces of the same
// worker incomparable.
type SamplerConfig struct {
	// Enabled activates sampling; disabled means every trace is recorded.
	Enabled bool

	// Rate is the fraction of traces to keep (0.0 - 1.0).
	Rate float64

	// AlwaysSampleErrors records every trace that contains an error span
	// regardless of Rate, so failed invocations are never sampled away.
	AlwaysSampleErrors bool
}

// NewSampler builds the node's sampler: trace-ID-ratio based (hence
// deterministic per trace), optionally error-biased.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	if !cfg.Enabled || cfg.Rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	if cfg.Rate <= 0 {
		return sdktrace.NeverSample()
	}

	base := sdktrace.TraceIDRatioBased(cfg.Rate)
	if !cfg.AlwaysSampleErrors {
		return base
	}
	return &errorBiasedSampler{base: base, rate: cfg.Rate}
}

// errorBiasedSampler keeps the base ratio decision but force-samples any
// span whose attributes already mark an error at creation time. Errors
// discovered later cannot resurrect an unsampled trace (head sampling);
// callers that need a failed invocation traced set the error attribute on
// the root span up front.
type errorBiasedSampler struct {
	base sdktrace.Sampler
	rate float64
}

func (s *errorBiasedSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range p.Attributes {
		if attr.Key == "error" && attr.Value.AsBool() {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
	}
	return s.base.ShouldSample(p)
}

func (s *errorBiasedSampler) Description() string {
	return fmt.Sprintf("ErrorBiased{rate=%g}", s.rate)
}
