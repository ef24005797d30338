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

// Package replay drives a worker's execution against its oplog: during
// Replaying it feeds recorded results back to host calls instead of
// re-executing them, and once the recorded prefix is exhausted it switches to
// Live and appends new entries as the worker actually runs. Divergence
// between what the running code calls and what the oplog says was called is
// never silently accepted; it surfaces as golemerr.UnexpectedOplogEntry.
package replay

import (
	"context"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// Mode is the engine's current driving mode for a worker.
type Mode string

const (
	// Replaying feeds recorded ImportedFunctionInvoked payloads back to host
	// calls instead of re-executing them, reconstructing state up to the
	// point the worker was last suspended, interrupted, or crashed.
	Replaying Mode = "Replaying"
	// Live executes host calls for real and appends the result to the oplog.
	Live Mode = "Live"
)

// Engine drives one worker's interaction with its oplog. It is not safe for
// concurrent use by multiple goroutines; a worker executes on one goroutine
// at a time by construction (workerstate enforces single-writer semantics).
type Engine struct {
	store  oplog.Store
	worker oplog.WorkerID

	mode Mode

	// cursor is the next recorded index to consult while Replaying.
	cursor oplog.Index
	// lastRecorded is the highest index present in the oplog at construction
	// time; once cursor passes it the engine switches to Live.
	lastRecorded oplog.Index
	// nextIndex is the index the next Live append will use.
	nextIndex oplog.Index

	// atomicStack holds the start index of each open
	// BeginAtomicRegion/EndAtomicRegion pair, innermost last;
	// AbortAtomicRegion closes the innermost one.
	atomicStack []oplog.Index

	// remoteWriteStack tracks nested BeginRemoteWrite/EndRemoteWrite pairs,
	// independently of atomicStack since the two bracket kinds may nest
	// with each other.
	remoteWriteStack []oplog.Index

	// deleted holds every Jump region recorded in the oplog (plus any
	// appended by this engine's own Abort* calls). Entries inside a deleted
	// region are skipped during replay: the running worker never re-issues
	// them, it re-executes the whole span live instead.
	deleted []oplog.Region

	// memoryUsed is the worker's linear-memory footprint (Create's initial
	// size plus every non-deleted GrowMemory delta); memoryLimit caps it,
	// 0 meaning unlimited.
	memoryUsed  uint64
	memoryLimit uint64
}

// NewEngine loads worker's current oplog length, repairs any atomic region
// or remote-write bracket left dangling by a process crash (see
// recoverDanglingRegions), and starts the engine in Replaying mode if any
// entries exist, Live otherwise (a brand-new worker has nothing to replay).
func NewEngine(ctx context.Context, store oplog.Store, worker oplog.WorkerID) (*Engine, error) {
	last, err := store.LastIndex(ctx, worker)
	if err != nil {
		return nil, fmt.Errorf("loading last oplog index: %w", err)
	}

	last, deleted, memory, err := recoverDanglingRegions(ctx, store, worker, last)
	if err != nil {
		return nil, fmt.Errorf("recovering dangling regions: %w", err)
	}

	mode := Live
	if last > 0 {
		mode = Replaying
	}

	return &Engine{
		store:        store,
		worker:       worker,
		mode:         mode,
		cursor:       1,
		lastRecorded: last,
		nextIndex:    last + 1,
		deleted:      deleted,
		memoryUsed:   memory,
	}, nil
}

// SkipTo positions the replay cursor at idx, declaring everything before
// it reconstructed by other means - the status-record fold and the sandbox
// rebuild - so replay resumes at the first entry that still needs
// re-execution (typically an in-flight invocation's ExportedFunctionInvoked
// entry). Skipping past the end of the recorded oplog switches the engine
// straight to Live.
func (e *Engine) SkipTo(idx oplog.Index) {
	e.cursor = idx
	if e.cursor > e.lastRecorded {
		e.mode = Live
	}
}

// SetMemoryLimit caps the worker's linear memory at bytes; 0 removes the
// cap. The limit is node configuration, not oplog state, so it is applied
// after construction rather than journaled.
func (e *Engine) SetMemoryLimit(bytes uint64) {
	e.memoryLimit = bytes
}

// MemoryUsed returns the worker's current linear-memory footprint.
func (e *Engine) MemoryUsed() uint64 {
	return e.memoryUsed
}

// GrowMemory journals a linear-memory growth of delta bytes, refusing with
// a non-retriable OutOfMemory error when it would push the worker past the
// node's cap. The refusal is not journaled: replaying the same prefix under
// the same limit deterministically refuses at the same point.
func (e *Engine) GrowMemory(ctx context.Context, delta uint64) (oplog.Index, error) {
	if e.memoryLimit > 0 && e.memoryUsed+delta > e.memoryLimit {
		return 0, golemerr.OutOfMemory(fmt.Sprintf(
			"linear memory %d + %d exceeds limit %d", e.memoryUsed, delta, e.memoryLimit))
	}
	return e.Append(ctx, oplog.Entry{Kind: oplog.KindGrowMemory, MemoryDelta: delta})
}

// DeletedRegions returns the Jump regions known to this engine, in oplog
// order. The slice is shared; callers must not mutate it.
func (e *Engine) DeletedRegions() []oplog.Region {
	return e.deleted
}

// skipDeleted advances the replay cursor past entries inside deleted
// regions. The running worker never re-issues those calls; it re-executes
// the whole span live once replay has caught up. With consumeJumps set, a
// Jump bookkeeping entry at the cursor is consumed silently as well, since
// no host call or control append ever corresponds to it.
func (e *Engine) skipDeleted(ctx context.Context, consumeJumps bool) error {
	for e.cursor <= e.lastRecorded {
		if end, ok := e.deletedEnd(e.cursor); ok {
			e.cursor = end
			continue
		}
		if !consumeJumps {
			return nil
		}
		entries, err := e.store.Read(ctx, e.worker, e.cursor, e.cursor)
		if err != nil {
			return fmt.Errorf("reading oplog entry %d: %w", e.cursor, err)
		}
		if len(entries) == 1 && entries[0].Kind == oplog.KindJump {
			e.cursor++
			continue
		}
		return nil
	}
	return nil
}

// deletedEnd reports whether idx falls inside a deleted region, returning
// the region's (exclusive) end when it does.
func (e *Engine) deletedEnd(idx oplog.Index) (oplog.Index, bool) {
	for _, r := range e.deleted {
		if idx >= r.Start && idx < r.End {
			return r.End, true
		}
	}
	return 0, false
}

// Mode reports the engine's current driving mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// IsReplaying reports whether the engine is still consuming recorded entries.
func (e *Engine) IsReplaying() bool {
	return e.mode == Replaying
}

// CallSiteIndex returns the oplog index the next Dispatch or Append will
// use while Live, or the index Replaying is currently consuming. Callers
// that must derive a value stable across replays from "where in the oplog
// am I" - such as an outbound idempotency key - read this before issuing
// the call it will be mixed into.
func (e *Engine) CallSiteIndex() oplog.Index {
	if e.mode == Replaying {
		return e.cursor
	}
	return e.nextIndex
}

// HostCall describes a single host function invocation the running worker
// wants to make. Invoke performs the real side-effecting call and is only
// used once the engine has switched to Live; during Replaying its recorded
// result is returned instead and Invoke is never called.
type HostCall struct {
	FunctionName string
	WrappedType  oplog.WrappedFunctionType
	Invoke       func(ctx context.Context) (*oplog.Payload, error)
}

// Dispatch executes (or replays) one host call. During Replaying it
// consumes the next recorded ImportedFunctionInvoked entry and asserts it
// matches call.FunctionName; a mismatch means the worker's code path has
// diverged from what was previously recorded (a non-deterministic host
// function, a code change that reordered calls, or similar) and is reported
// as golemerr.UnexpectedOplogEntry rather than silently accepted. Once the
// recorded prefix is exhausted, Dispatch transparently switches to Live and
// executes call.Invoke, appending the result.
func (e *Engine) Dispatch(ctx context.Context, call HostCall) (*oplog.Payload, error) {
	if e.mode == Replaying {
		if err := e.skipDeleted(ctx, true); err != nil {
			return nil, err
		}
		if e.cursor > e.lastRecorded {
			e.mode = Live
		} else {
			entries, err := e.store.Read(ctx, e.worker, e.cursor, e.cursor)
			if err != nil {
				return nil, fmt.Errorf("reading oplog entry %d: %w", e.cursor, err)
			}
			if len(entries) != 1 {
				return nil, golemerr.UnexpectedOplogEntry(
					fmt.Sprintf("ImportedFunctionInvoked(%s) at index %d", call.FunctionName, e.cursor),
					"no entry",
				)
			}
			entry := entries[0]
			if entry.Kind != oplog.KindImportedFunctionInvoked || entry.FunctionName != call.FunctionName {
				return nil, golemerr.UnexpectedOplogEntry(call.FunctionName, describeRecorded(entry))
			}
			e.cursor = entry.Index + 1
			if entry.HostError != nil {
				return entry.Payload, golemerr.FromSerializable(*entry.HostError)
			}
			return entry.Payload, nil
		}
	}

	payload, callErr := call.Invoke(ctx)

	entry := oplog.Entry{
		Index:               e.nextIndex,
		Kind:                oplog.KindImportedFunctionInvoked,
		WrappedFunctionType: call.WrappedType,
		FunctionName:        call.FunctionName,
		Payload:             payload,
	}
	if callErr != nil {
		serialized := golemerr.ToSerializable(callErr)
		entry.HostError = &serialized
	}
	if err := e.store.Append(ctx, e.worker, entry); err != nil {
		return nil, fmt.Errorf("appending host call result: %w", err)
	}
	e.nextIndex++

	return payload, callErr
}

func describeRecorded(entry oplog.Entry) string {
	if entry.Kind != oplog.KindImportedFunctionInvoked {
		return string(entry.Kind)
	}
	return entry.FunctionName
}

// Append records a non-host-call oplog entry (Create, ExportedFunctionInvoked,
// Suspend, Error, GrowMemory, and so on) directly, bypassing replay
// comparison. Control-flow entries like these are driven by the engine's
// caller (the invocation and lifecycle layers), which already knows whether
// it is replaying or live; Append always writes through once in Live mode,
// and is a no-op during Replaying since those entries are already present.
func (e *Engine) Append(ctx context.Context, entry oplog.Entry) (oplog.Index, error) {
	if e.mode == Replaying {
		if err := e.skipDeleted(ctx, true); err != nil {
			return 0, err
		}
		if e.cursor > e.lastRecorded {
			e.mode = Live
		} else {
			entries, err := e.store.Read(ctx, e.worker, e.cursor, e.cursor)
			if err != nil {
				return 0, fmt.Errorf("reading oplog entry %d: %w", e.cursor, err)
			}
			if len(entries) != 1 || entries[0].Kind != entry.Kind {
				return 0, golemerr.UnexpectedOplogEntry(string(entry.Kind), string(entryKindAt(entries)))
			}
			idx := entries[0].Index
			e.cursor = idx + 1
			return idx, nil
		}
	}

	entry.Index = e.nextIndex
	if err := e.store.Append(ctx, e.worker, entry); err != nil {
		return 0, fmt.Errorf("appending oplog entry: %w", err)
	}
	idx := e.nextIndex
	e.nextIndex++

	// Replayed entries are already counted by the recovery scan; only live
	// appends move the footprint.
	switch entry.Kind {
	case oplog.KindCreate:
		e.memoryUsed = entry.InitialMemory
	case oplog.KindGrowMemory:
		e.memoryUsed += entry.MemoryDelta
	}
	return idx, nil
}

func entryKindAt(entries []oplog.Entry) oplog.EntryKind {
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Kind
}

// ReplayUpTo replays host calls and control entries until the recorded
// prefix is exhausted, invoking handle for every non-host-call entry so the
// caller (typically the invocation layer) can fold it into workerstate via
// workerstate.Reduce. It returns once the engine has switched to Live, or,
// still Replaying, when the cursor reaches a recorded host call, which
// Dispatch then consumes.
func (e *Engine) ReplayUpTo(ctx context.Context, handle func(oplog.Entry) error) error {
	for e.mode == Replaying {
		// Deleted spans are invisible to the fold; the Jump entries that
		// declared them still pass through handle so the derived record's
		// DeletedRegions stays a pure function of the oplog.
		if err := e.skipDeleted(ctx, false); err != nil {
			return err
		}
		if e.cursor > e.lastRecorded {
			e.mode = Live
			return nil
		}
		entries, err := e.store.Read(ctx, e.worker, e.cursor, e.cursor)
		if err != nil {
			return fmt.Errorf("reading oplog entry %d: %w", e.cursor, err)
		}
		if len(entries) != 1 {
			return golemerr.UnexpectedOplogEntry(fmt.Sprintf("entry at index %d", e.cursor), "no entry")
		}
		entry := entries[0]
		if entry.Kind == oplog.KindImportedFunctionInvoked {
			// Host calls are consumed lazily by Dispatch as the worker's code
			// path reaches them, not eagerly here.
			return nil
		}
		e.cursor = entry.Index + 1
		if err := handle(entry); err != nil {
			return err
		}
	}
	return nil
}
