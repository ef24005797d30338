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

// Package invocation is a worker's single-consumer invocation queue. It
// reconciles three sources of work - invocations arriving from outside
// (API or RPC), PendingWorkerInvocation entries recovered from a prior run's
// oplog, and resumptions a worker schedules for itself (a timer, a promise
// completion, a retry backoff) - into one FIFO a worker's executor loop
// drains. Recovered work is admitted in oplog order ahead of live
// arrivals; a signal channel backs the blocking Dequeue.
package invocation

import (
	"context"
	"errors"
	"sync"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// Source records which of the three reconciled streams an Invocation came
// from. It has no bearing on ordering - the queue is strict FIFO - but lets
// callers (logging, metrics) distinguish replay recovery from live traffic.
type Source string

const (
	SourceExternal      Source = "External"
	SourceRecovered     Source = "Recovered"
	SourceSelfScheduled Source = "SelfScheduled"
)

// Invocation is one call admitted to a worker's queue.
type Invocation struct {
	IdempotencyKey string
	Function       string
	Request        *oplog.Payload
	Source         Source
}

// ResultLookup is the subset of workerstate.Record a Queue consults to
// suppress duplicate execution: if IdempotencyKey already names a terminal
// oplog entry, the invocation must not run again.
type ResultLookup interface {
	ResultFor(idempotencyKey string) (oplog.Index, bool)
}

// ErrQueueClosed is returned by Enqueue and Dequeue once the queue has been
// closed.
var ErrQueueClosed = errors.New("invocation: queue is closed")

// Queue is a worker's single-consumer invocation queue. Safe for concurrent
// use by one consumer and many producers (external enqueues, RPC callbacks,
// scheduler-driven resumptions).
type Queue struct {
	mu      sync.Mutex
	pending []Invocation
	admitted map[string]struct{} // idempotency keys currently queued or in flight
	signal  chan struct{}
	closed  bool

	lookup ResultLookup
}

// New creates an empty Queue backed by lookup for duplicate suppression.
func New(lookup ResultLookup) *Queue {
	return &Queue{
		admitted: make(map[string]struct{}),
		signal:   make(chan struct{}, 1),
		lookup:   lookup,
	}
}

// Enqueue admits inv unless its idempotency key already names a completed
// invocation (in lookup) or one already queued/in-flight, in which case it
// reports the outcome instead of re-admitting: (existingIndex, true, nil)
// when a terminal result already exists, or (0, false, nil) when a call
// with the same key is already pending and this one is simply dropped as a
// duplicate delivery.
func (q *Queue) Enqueue(ctx context.Context, inv Invocation) (oplog.Index, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false, ErrQueueClosed
	}

	if idx, ok := q.lookup.ResultFor(inv.IdempotencyKey); ok {
		return idx, true, nil
	}
	if _, ok := q.admitted[inv.IdempotencyKey]; ok {
		return 0, false, nil
	}

	q.admitted[inv.IdempotencyKey] = struct{}{}
	q.pending = append(q.pending, inv)
	q.wake()
	return 0, false, nil
}

// Recover admits entries recovered from a worker's oplog, in the order
// they appear, so recovered invocations reapply in oplog order. It must be called
// before any live Enqueue so recovered work drains ahead of new arrivals.
func (q *Queue) Recover(ctx context.Context, entries []oplog.Entry) error {
	for _, e := range entries {
		if e.Kind != oplog.KindPendingWorkerInvocation {
			continue
		}
		if _, _, err := q.Enqueue(ctx, Invocation{
			IdempotencyKey: e.IdempotencyKey,
			Function:       e.FunctionName,
			Request:        e.Request,
			Source:         SourceRecovered,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue removes and returns the next invocation, blocking until one is
// available or ctx is cancelled. Release must be called once the
// invocation's terminal oplog entry has been appended, so a later duplicate
// delivery sees it via ResultLookup rather than being dropped silently.
func (q *Queue) Dequeue(ctx context.Context) (Invocation, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Invocation{}, ErrQueueClosed
		}
		if len(q.pending) > 0 {
			inv := q.pending[0]
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return inv, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Invocation{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Release clears key from the in-flight set once its terminal oplog entry
// is durable, so a subsequent at-least-once redelivery of the same key is
// resolved via ResultLookup instead of being treated as still-in-flight.
func (q *Queue) Release(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.admitted, key)
}

// Len reports how many invocations are queued but not yet dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close shuts the queue down; pending and future Enqueue/Dequeue calls
// return ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)
	return nil
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
