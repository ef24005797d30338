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

import "time"

// Config holds the node's observability configuration.
type Config struct {
	// Enabled controls whether tracing is active; a disabled node still
	// serves workers, it just emits no spans.
	Enabled bool

	// ServiceName identifies this executor node in traces.
	ServiceName string

	// ServiceVersion is the node's build version.
	ServiceVersion string

	// Sampling configures trace sampling; zero value samples everything.
	Sampling SamplerConfig

	// Exporters configures OTLP export destinations; empty keeps spans
	// in-process (the Prometheus metrics endpoint works regardless).
	Exporters []ExporterConfig

	// BatchSize is the maximum number of spans per export batch.
	BatchSize int

	// BatchInterval is how often buffered spans are flushed.
	BatchInterval time.Duration
}

// ExporterConfig defines one OTLP export destination.
type ExporterConfig struct {
	// Type selects the exporter: "otlp" (gRPC), "otlp-http", or "console".
	Type string

	// Endpoint is the OTLP receiver address.
	Endpoint string

	// Headers are attached to every export request (authentication).
	Headers map[string]string

	// TLS configures the export connection.
	TLS TLSConfig

	// Timeout bounds each export attempt.
	Timeout time.Duration
}

// TLSConfig configures TLS for an exporter connection.
type TLSConfig struct {
	// Enabled activates TLS; disabled means plaintext (local collectors).
	Enabled bool
}

// DefaultConfig returns the configuration a node runs with when nothing
// overrides it: tracing on, everything sampled, no remote exporters.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		ServiceName:   "worker-executor",
		BatchSize:     512,
		BatchInterval: 5 * time.Second,
	}
}
