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

// Package workerexecutor drives workers: each Executor owns one worker's
// replay engine, sandbox, and durable host surface, and drains that
// worker's invocation queue - recovered entries first, then live arrivals.
// The WASM component runtime itself is behind the Guest interface; this
// package supplies everything the guest's host imports need.
package workerexecutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golemcloud/worker-executor/internal/hostfunc"
	"github.com/golemcloud/worker-executor/internal/hostfunc/fs"
	"github.com/golemcloud/worker-executor/internal/hostfunc/transport"
	"github.com/golemcloud/worker-executor/internal/invocation"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/promise"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/internal/scheduler"
	"github.com/golemcloud/worker-executor/internal/tracing"
	"github.com/golemcloud/worker-executor/internal/workerstate"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// Guest abstracts the WASM component runtime: given the worker's durable
// host surface, invoke one exported function. Implementations route every
// nondeterministic effect through host - that is what makes the invocation
// replayable.
type Guest interface {
	Invoke(ctx context.Context, host *Host, function string, args value.Value) (value.Value, error)
}

// Host is the durable host surface one worker's guest sees. Every field
// already crosses the worker's replay engine, so a guest using only this
// surface is deterministic under replay by construction.
type Host struct {
	Worker    oplog.WorkerID
	Engine    *replay.Engine
	Functions *hostfunc.Registry
	HTTP      *hostfunc.HTTPClient
	API       *hostfunc.GolemAPI
	FS        *hostfunc.Filesystem

	// InvocationKey is the idempotency key of the invocation currently
	// executing; outbound HTTP and RPC mix it into their derived keys.
	InvocationKey string
}

// Call dispatches a registered host function by name through the engine.
func (h *Host) Call(ctx context.Context, name string, args value.Value) (value.Value, error) {
	fn, err := h.Functions.Get(name)
	if err != nil {
		return value.Value{}, err
	}
	return hostfunc.Dispatch(ctx, h.Engine, fn, args)
}

// Config assembles one worker's executor.
type Config struct {
	Worker oplog.WorkerID
	Store  oplog.Store
	States *workerstate.Store
	Queue  *invocation.Queue
	Guest  Guest

	// Engine may be supplied when the caller already constructed one (the
	// control plane shares its cached engine); nil builds a fresh engine.
	Engine *replay.Engine

	// Outbound is the transport chain for the worker's outgoing HTTP host
	// calls; nil disables outgoing HTTP.
	Outbound transport.Transport

	// Promises and Scheduler back the golem:api promise/sleep surface.
	Promises  *promise.Store
	Scheduler *scheduler.Scheduler

	// Functions is the shared host-function registry; nil means none
	// beyond the per-worker surfaces (filesystem, HTTP, golem:api).
	Functions *hostfunc.Registry

	// MaxLinearMemory caps the worker's linear memory; 0 means unlimited.
	MaxLinearMemory uint64

	// Metrics records invocation outcomes and in-flight counts; nil
	// disables recording.
	Metrics *tracing.MetricsCollector

	NowMs  func() int64
	Logger *slog.Logger
}

// Executor runs one worker.
type Executor struct {
	cfg    Config
	host   *Host
	record workerstate.Record
	logger *slog.Logger
}

// New recovers the worker: rebuild its sandbox from the journal, construct
// (or adopt) its replay engine, fold the recorded oplog into its status
// record, and re-admit any pending invocations ahead of live arrivals.
func New(ctx context.Context, cfg Config) (*Executor, error) {
	if cfg.NowMs == nil {
		cfg.NowMs = func() int64 { return time.Now().UnixMilli() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sandbox := fs.New()
	filesystem := hostfunc.NewFilesystem(sandbox, cfg.NowMs)
	if err := hostfunc.RebuildSandbox(ctx, cfg.Store, cfg.Worker, filesystem); err != nil {
		return nil, fmt.Errorf("rebuilding sandbox: %w", err)
	}

	engine := cfg.Engine
	if engine == nil {
		var err error
		engine, err = replay.NewEngine(ctx, cfg.Store, cfg.Worker)
		if err != nil {
			return nil, fmt.Errorf("constructing replay engine: %w", err)
		}
	}
	engine.SetMemoryLimit(cfg.MaxLinearMemory)

	// Recovery: fold the recorded oplog into the status record, find the
	// invocation that was in flight at crash time (if any), and position
	// the engine so that invocation's recorded host calls replay when it
	// re-runs. Everything before it is already reconstructed by the fold
	// and the sandbox rebuild.
	record := workerstate.Empty()
	var inflight *oplog.Entry
	last, err := cfg.Store.LastIndex(ctx, cfg.Worker)
	if err != nil {
		return nil, fmt.Errorf("reading oplog length: %w", err)
	}
	if last > 0 {
		entries, err := cfg.Store.Read(ctx, cfg.Worker, 1, last)
		if err != nil {
			return nil, fmt.Errorf("reading oplog: %w", err)
		}
		for i := range entries {
			record = workerstate.Reduce(record, entries[i])
			switch entries[i].Kind {
			case oplog.KindExportedFunctionInvoked:
				inflight = &entries[i]
			case oplog.KindExportedFunctionCompleted, oplog.KindExited:
				inflight = nil
			}
		}
		if record.Status != workerstate.StatusRunning && record.Status != workerstate.StatusRetrying {
			inflight = nil
		}

		if inflight != nil {
			engine.SkipTo(inflight.Index)
			if cfg.Queue != nil {
				if _, _, err := cfg.Queue.Enqueue(ctx, invocation.Invocation{
					IdempotencyKey: inflight.IdempotencyKey,
					Function:       inflight.FunctionName,
					Request:        inflight.Request,
					Source:         invocation.SourceRecovered,
				}); err != nil {
					return nil, fmt.Errorf("re-admitting in-flight invocation: %w", err)
				}
			}
		} else {
			engine.SkipTo(last + 1)
		}

		if cfg.Queue != nil {
			if err := cfg.Queue.Recover(ctx, entries); err != nil {
				return nil, fmt.Errorf("recovering pending invocations: %w", err)
			}
		}
	}
	if cfg.States != nil {
		if err := cfg.States.Apply(ctx, cfg.Worker, record); err != nil {
			logger.Warn("applying recovered status record", slog.String("error", err.Error()))
		}
	}

	host := &Host{
		Worker:    cfg.Worker,
		Engine:    engine,
		Functions: cfg.Functions,
		FS:        filesystem,
	}
	if cfg.Promises != nil {
		host.API = hostfunc.NewGolemAPI(cfg.Worker, engine, cfg.Promises, cfg.Scheduler, cfg.NowMs)
	}
	if cfg.Outbound != nil {
		host.HTTP = hostfunc.NewHTTPClient(engine, cfg.Outbound)
	}

	return &Executor{
		cfg:    cfg,
		host:   host,
		record: record,
		logger: logger.With(slog.String("worker", cfg.Worker.ComponentID+"/"+cfg.Worker.WorkerName)),
	}, nil
}

// Host exposes the worker's durable host surface, mainly for tests and for
// guests that are driven from outside Run.
func (x *Executor) Host() *Host {
	return x.host
}

// Run drains the worker's invocation queue until ctx is cancelled or the
// queue closes. Invocations against a worker already terminal are
// released immediately; the control plane rejects them upstream as well.
func (x *Executor) Run(ctx context.Context) error {
	for {
		inv, err := x.cfg.Queue.Dequeue(ctx)
		if errors.Is(err, invocation.ErrQueueClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		if workerstate.IsTerminal(x.record.Status) {
			x.cfg.Queue.Release(inv.IdempotencyKey)
			continue
		}

		if x.cfg.Metrics != nil {
			x.cfg.Metrics.InvocationStarted()
		}
		started := time.Now()
		x.runInvocation(ctx, inv)
		if x.cfg.Metrics != nil {
			outcome := "completed"
			if x.record.Status == workerstate.StatusFailed {
				outcome = "failed"
			}
			x.cfg.Metrics.RecordInvocation(ctx, outcome, time.Since(started))
			x.cfg.Metrics.InvocationFinished()
		}
		x.cfg.Queue.Release(inv.IdempotencyKey)
	}
}

// runInvocation drives one invocation through the guest, retrying trapped
// attempts per the worker's retry policy and journaling every transition.
func (x *Executor) runInvocation(ctx context.Context, inv invocation.Invocation) {
	args, err := decodeArgs(inv)
	if err != nil {
		x.appendError(ctx, golemerr.InvalidRequest(err.Error()))
		return
	}
	x.host.InvocationKey = inv.IdempotencyKey

	policy := workerstate.DefaultRetryPolicy()
	if x.record.OverriddenRetryConfig != nil {
		policy = *x.record.OverriddenRetryConfig
	}

	// The Invoked entry is journaled once per invocation; retried attempts
	// re-run the guest against the same entry so a replay of the final
	// journal sees the same entry sequence the retries actually produced.
	if _, err := x.append(ctx, oplog.Entry{
		Kind:           oplog.KindExportedFunctionInvoked,
		IdempotencyKey: inv.IdempotencyKey,
		FunctionName:   inv.Function,
		Request:        inv.Request,
	}); err != nil {
		x.logger.Error("journaling invocation start", slog.String("error", err.Error()))
		return
	}

	for {
		result, guestErr := x.cfg.Guest.Invoke(ctx, x.host, inv.Function, args)
		if guestErr == nil {
			x.complete(ctx, result)
			return
		}

		x.appendError(ctx, classify(guestErr))
		if x.record.Status != workerstate.StatusRetrying {
			// The fold decided the error was non-retriable or the retry
			// budget is spent; the worker is Failed.
			return
		}

		delay, again := policy.NextDelay(x.record.ConsecutiveErrors)
		if !again {
			delay = 0
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (x *Executor) complete(ctx context.Context, result value.Value) {
	encoded, err := value.EncodeJSON(result)
	if err != nil {
		x.appendError(ctx, golemerr.Unknown(err))
		return
	}
	if _, err := x.append(ctx, oplog.Entry{
		Kind:     oplog.KindExportedFunctionCompleted,
		Response: &oplog.Payload{Inline: encoded},
	}); err != nil {
		x.logger.Error("journaling invocation completion", slog.String("error", err.Error()))
	}
}

func (x *Executor) appendError(ctx context.Context, gerr *golemerr.Error) {
	serialized := golemerr.ToSerializable(gerr)
	if _, err := x.append(ctx, oplog.Entry{Kind: oplog.KindError, WorkerError: &serialized}); err != nil {
		x.logger.Error("journaling worker error", slog.String("error", err.Error()))
	}
}

// append journals entry through the engine and folds it into the status
// record, keeping the cached record a pure function of the oplog.
func (x *Executor) append(ctx context.Context, entry oplog.Entry) (oplog.Index, error) {
	entry.Timestamp = x.cfg.NowMs()
	idx, err := x.host.Engine.Append(ctx, entry)
	if err != nil {
		return 0, err
	}
	entry.Index = idx
	x.record = workerstate.Reduce(x.record, entry)
	x.applyRecord(ctx)
	return idx, nil
}

func (x *Executor) applyRecord(ctx context.Context) {
	if x.cfg.States == nil {
		return
	}
	if err := x.cfg.States.Apply(ctx, x.cfg.Worker, x.record); err != nil {
		x.logger.Warn("applying status record", slog.String("error", err.Error()))
	}
}

// classify maps a guest failure into the taxonomy: structured errors pass
// through, anything else is treated as trap text (out-of-memory and
// stack-overflow traps get their non-retriable types).
func classify(err error) *golemerr.Error {
	var gerr *golemerr.Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return golemerr.FromTrap(err.Error())
}

func decodeArgs(inv invocation.Invocation) (value.Value, error) {
	if inv.Request == nil || len(inv.Request.Inline) == 0 {
		return value.Value{}, nil
	}
	return value.DecodeJSON(inv.Request.Inline)
}
