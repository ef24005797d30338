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

package hostfunc

import (
	"context"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/promise"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/internal/scheduler"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// GolemAPI exposes the golem:api host surface for promises and deferred
// wakeups. A promise is identified by the oplog index of the host call that
// created it, so every function here needs the worker's replay engine to
// learn its own call-site index; on replay the recorded results are handed
// back by the engine and none of these bodies run at all.
type GolemAPI struct {
	worker   oplog.WorkerID
	engine   *replay.Engine
	promises *promise.Store
	sched    *scheduler.Scheduler
	nowMs    func() int64
}

// NewGolemAPI wires the promise and scheduler stores for one worker. sched
// may be nil when the node runs no timer wheel; Sleep then fails rather than
// hanging forever.
func NewGolemAPI(worker oplog.WorkerID, engine *replay.Engine, promises *promise.Store, sched *scheduler.Scheduler, nowMs func() int64) *GolemAPI {
	return &GolemAPI{worker: worker, engine: engine, promises: promises, sched: sched, nowMs: nowMs}
}

// EncodePromiseID renders a promise.ID in the form the scheduler's
// CompletePromise action carries.
func EncodePromiseID(id promise.ID) string {
	return fmt.Sprintf("%s/%s/%d", id.Worker.ComponentID, id.Worker.WorkerName, id.OplogIdx)
}

func (a *GolemAPI) CreatePromise() Function   { return apiCreatePromise{a} }
func (a *GolemAPI) AwaitPromise() Function    { return apiAwaitPromise{a} }
func (a *GolemAPI) CompletePromise() Function { return apiCompletePromise{a} }
func (a *GolemAPI) Sleep() Function           { return apiSleep{a} }

type apiCreatePromise struct{ a *GolemAPI }

func (apiCreatePromise) Name() string                           { return "golem:api/host.create-promise" }
func (apiCreatePromise) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }

// Invoke registers a pending promise keyed by this call's own oplog index
// and returns that index; the guest holds it as the promise's name.
func (c apiCreatePromise) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	idx := c.a.engine.CallSiteIndex()
	c.a.promises.Create(promise.ID{Worker: c.a.worker, OplogIdx: idx})
	return value.U(value.KindU64, uint64(idx)), nil
}

type apiAwaitPromise struct{ a *GolemAPI }

func (apiAwaitPromise) Name() string                           { return "golem:api/host.await-promise" }
func (apiAwaitPromise) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }

// Invoke blocks until the named promise completes and returns its payload
// bytes. The worker suspends here when live; on replay the completion value
// comes straight out of the journal without waiting.
func (w apiAwaitPromise) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	idx, err := promiseIdxArg(args)
	if err != nil {
		return value.Value{}, err
	}
	snap, err := w.a.promises.Await(ctx, promise.ID{Worker: w.a.worker, OplogIdx: idx})
	if err != nil {
		return value.Value{}, err
	}
	return listFromBytes(snap.Value), nil
}

type apiCompletePromise struct{ a *GolemAPI }

func (apiCompletePromise) Name() string                           { return "golem:api/host.complete-promise" }
func (apiCompletePromise) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }

// Invoke delivers a completion value to one of this worker's own promises.
// It returns true when this call resolved the promise and false when it was
// already complete; completion is idempotent either way.
func (c apiCompletePromise) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindTuple || len(args.List) != 2 {
		return value.Value{}, fmt.Errorf("complete-promise expects (promise-idx, data) tuple")
	}
	idx, err := promiseIdxArg(args.List[0])
	if err != nil {
		return value.Value{}, err
	}
	data, err := bytesFromList(args.List[1])
	if err != nil {
		return value.Value{}, err
	}

	id := promise.ID{Worker: c.a.worker, OplogIdx: idx}
	before, err := c.a.promises.Get(id)
	if err != nil {
		return value.Value{}, err
	}
	if err := c.a.promises.Complete(id, data); err != nil {
		return value.Value{}, err
	}
	return value.Bool(before.State == promise.StatePending), nil
}

type apiSleep struct{ a *GolemAPI }

func (apiSleep) Name() string                           { return "golem:api/host.sleep" }
func (apiSleep) WrappedType() oplog.WrappedFunctionType { return oplog.WriteLocal }

// Invoke suspends the worker for the requested number of milliseconds by
// creating a promise and scheduling its completion, then awaiting it. The
// scheduler's late-but-never-early contract makes the observed sleep at
// least as long as requested; a crash mid-sleep re-runs this body live on
// recovery, so the total wall-clock time only grows.
func (s apiSleep) Invoke(ctx context.Context, args value.Value) (value.Value, error) {
	if args.Kind != value.KindU64 {
		return value.Value{}, fmt.Errorf("sleep expects duration millis as u64")
	}
	if s.a.sched == nil {
		return value.Value{}, fmt.Errorf("no scheduler available for sleep")
	}

	id := promise.ID{Worker: s.a.worker, OplogIdx: s.a.engine.CallSiteIndex()}
	s.a.promises.Create(id)

	deadline := s.a.nowMs() + int64(args.U64)
	entry := scheduler.NewEntry(deadline, scheduler.Action{
		Kind: scheduler.ActionCompletePromise,
		CompletePromise: &scheduler.CompletePromiseAction{
			PromiseID: EncodePromiseID(id),
		},
	})
	if err := s.a.sched.Schedule(ctx, entry); err != nil {
		return value.Value{}, fmt.Errorf("scheduling sleep wakeup: %w", err)
	}

	if _, err := s.a.promises.Await(ctx, id); err != nil {
		return value.Value{}, err
	}
	return value.Bool(true), nil
}

func promiseIdxArg(v value.Value) (oplog.Index, error) {
	if v.Kind != value.KindU64 {
		return 0, fmt.Errorf("expected promise oplog index as u64, got %s", v.Kind)
	}
	return oplog.Index(v.U64), nil
}
