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
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanExporterOptions builds one sdktrace.WithBatcher option per configured
// exporter in cfg.Exporters, so a node with no exporters configured keeps
// spans in-process (as today) while one with "otlp", "otlp-http", or
// "console" entries ships them to that collector.
func spanExporterOptions(ctx context.Context, cfg Config) ([]sdktrace.TracerProviderOption, error) {
	opts := make([]sdktrace.TracerProviderOption, 0, len(cfg.Exporters))
	for _, ec := range cfg.Exporters {
		exp, err := newSpanExporter(ctx, ec)
		if err != nil {
			return nil, fmt.Errorf("tracing: exporter %q: %w", ec.Type, err)
		}
		batcherOpts := []sdktrace.BatchSpanProcessorOption{}
		if cfg.BatchInterval > 0 {
			batcherOpts = append(batcherOpts, sdktrace.WithBatchTimeout(cfg.BatchInterval))
		}
		if cfg.BatchSize > 0 {
			batcherOpts = append(batcherOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
		}
		opts = append(opts, sdktrace.WithBatcher(exp, batcherOpts...))
	}
	return opts, nil
}

// newSpanExporter constructs the exporter named by ec.Type. "otlp" dials an
// OTLP/gRPC collector, "otlp-http" an OTLP/HTTP one, and "console" writes
// spans to stdout for local debugging - the same three destinations
// ExporterConfig.Type has documented since it was added.
func newSpanExporter(ctx context.Context, ec ExporterConfig) (sdktrace.SpanExporter, error) {
	switch ec.Type {
	case "otlp":
		opts := []otlptracegrpc.Option{}
		if ec.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(ec.Endpoint))
		}
		if len(ec.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(ec.Headers))
		}
		if !ec.TLS.Enabled {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if ec.Timeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(ec.Timeout))
		}
		return otlptracegrpc.New(ctx, opts...)

	case "otlp-http":
		opts := []otlptracehttp.Option{}
		if ec.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(ec.Endpoint))
		}
		if len(ec.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(ec.Headers))
		}
		if !ec.TLS.Enabled {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if ec.Timeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(ec.Timeout))
		}
		return otlptracehttp.New(ctx, opts...)

	case "console":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	default:
		return nil, fmt.Errorf("unknown exporter type %q (want otlp, otlp-http, or console)", ec.Type)
	}
}
