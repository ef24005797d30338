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
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records the node's durability-core metrics: oplog
// append latency, replay divergences, invocation outcomes, host-call
// latency by wrapped-function type, worker-to-worker RPC latency, and
// in-flight invocation count. Exported through the provider's Prometheus
// endpoint.
type MetricsCollector struct {
	meter metric.Meter

	oplogAppends       metric.Int64Counter
	replayDivergences  metric.Int64Counter
	invocationsTotal   metric.Int64Counter
	hostCallsTotal     metric.Int64Counter
	rpcCallsTotal      metric.Int64Counter

	oplogAppendLatency metric.Float64Histogram
	invocationDuration metric.Float64Histogram
	hostCallLatency    metric.Float64Histogram
	rpcLatency         metric.Float64Histogram

	queueDepth atomic.Int64
}

// NewMetricsCollector registers the node's instruments on meterProvider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("golem.worker-executor")
	mc := &MetricsCollector{meter: meter}

	var err error
	if mc.oplogAppends, err = meter.Int64Counter("golem_oplog_appends_total",
		metric.WithDescription("Oplog entries appended, by entry kind")); err != nil {
		return nil, err
	}
	if mc.replayDivergences, err = meter.Int64Counter("golem_replay_divergences_total",
		metric.WithDescription("Replays aborted with UnexpectedOplogEntry")); err != nil {
		return nil, err
	}
	if mc.invocationsTotal, err = meter.Int64Counter("golem_invocations_total",
		metric.WithDescription("Completed worker invocations, by outcome")); err != nil {
		return nil, err
	}
	if mc.hostCallsTotal, err = meter.Int64Counter("golem_host_calls_total",
		metric.WithDescription("Durable host calls executed live, by wrapped-function type")); err != nil {
		return nil, err
	}
	if mc.rpcCallsTotal, err = meter.Int64Counter("golem_rpc_calls_total",
		metric.WithDescription("Worker-to-worker RPC calls, by outcome")); err != nil {
		return nil, err
	}

	if mc.oplogAppendLatency, err = meter.Float64Histogram("golem_oplog_append_seconds",
		metric.WithDescription("Oplog append latency")); err != nil {
		return nil, err
	}
	if mc.invocationDuration, err = meter.Float64Histogram("golem_invocation_seconds",
		metric.WithDescription("Wall-clock invocation duration, including retries")); err != nil {
		return nil, err
	}
	if mc.hostCallLatency, err = meter.Float64Histogram("golem_host_call_seconds",
		metric.WithDescription("Live host-call latency")); err != nil {
		return nil, err
	}
	if mc.rpcLatency, err = meter.Float64Histogram("golem_rpc_seconds",
		metric.WithDescription("Worker-to-worker RPC latency")); err != nil {
		return nil, err
	}

	if _, err = meter.Int64ObservableGauge("golem_invocations_in_flight",
		metric.WithDescription("Invocations currently executing across this node's workers"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(mc.queueDepth.Load())
			return nil
		})); err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordOplogAppend records one append and its latency.
func (mc *MetricsCollector) RecordOplogAppend(ctx context.Context, kind string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	mc.oplogAppends.Add(ctx, 1, attrs)
	mc.oplogAppendLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordReplayDivergence counts a replay aborted by divergence.
func (mc *MetricsCollector) RecordReplayDivergence(ctx context.Context) {
	mc.replayDivergences.Add(ctx, 1)
}

// RecordInvocation records one completed invocation and its outcome
// ("completed", "failed", "interrupted").
func (mc *MetricsCollector) RecordInvocation(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	mc.invocationsTotal.Add(ctx, 1, attrs)
	mc.invocationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordHostCall records one live host-call execution. Replayed calls are
// not recorded: they never leave the journal.
func (mc *MetricsCollector) RecordHostCall(ctx context.Context, wrappedType string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("wrapped_type", wrappedType))
	mc.hostCallsTotal.Add(ctx, 1, attrs)
	mc.hostCallLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordRPCCall records one worker-to-worker call and its outcome
// ("ok" or the RpcError kind).
func (mc *MetricsCollector) RecordRPCCall(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	mc.rpcCallsTotal.Add(ctx, 1, attrs)
	mc.rpcLatency.Record(ctx, duration.Seconds(), attrs)
}

// InvocationStarted notes an invocation beginning execution.
func (mc *MetricsCollector) InvocationStarted() {
	mc.queueDepth.Add(1)
}

// InvocationFinished notes an invocation leaving execution.
func (mc *MetricsCollector) InvocationFinished() {
	mc.queueDepth.Add(-1)
}
