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

/*
Package tracing provides the worker-executor node's observability: an
OpenTelemetry tracer provider (OTLP and console exporters, deterministic
trace-ID sampling), Prometheus metrics for the durability core (oplog
append latency, replay divergences, invocation outcomes, host-call and
RPC latency, queue depth), and W3C trace-context injection for workers'
outgoing HTTP calls.

Create a provider at node start:

	provider, err := tracing.NewOTelProviderWithConfig(tracing.Config{
	    Enabled:     true,
	    ServiceName: "worker-executor",
	})

Span a unit of work through the provider-agnostic interface:

	tracer := provider.Tracer("golem.replay")
	ctx, span := tracer.Start(ctx, "replay-worker")
	defer span.End()

Record core metrics through the collector the provider owns:

	provider.MetricsCollector().RecordInvocation(ctx, "completed", elapsed)

The durability core starts no spans of its own. Its one tracing hook is
trace-context injection into outgoing HTTP headers, which runs on the live
path only: a replayed host call never re-executes its side effect, so it
never re-sends the headers the first execution produced. Replay itself
emits no span.
*/
package tracing
