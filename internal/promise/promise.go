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

// Package promise implements one-shot, externally-completable values tied
// to the oplog entry that created them. A worker awaiting a promise issues
// a WriteLocal-marked host call that either observes immediate completion
// or suspends until a CompletePromise scheduled action (internal/scheduler)
// delivers the value; completion is idempotent so a second Complete is a
// no-op rather than an error, matching the signal-channel wakeup shape this
// package generalizes from the job queue's blocking Dequeue.
package promise

import (
	"context"
	"sync"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// ID identifies a promise by the oplog entry that created it.
type ID struct {
	Worker   oplog.WorkerID
	OplogIdx oplog.Index
}

// State is a promise's lifecycle state.
type State string

const (
	StatePending  State = "Pending"
	StateComplete State = "Complete"
	StateDropped  State = "Dropped"
)

// Snapshot is an immutable view of a promise at a point in time.
type Snapshot struct {
	State State
	Value []byte // populated only when State == StateComplete
}

type entry struct {
	snapshot Snapshot
	waiters  []chan Snapshot
}

// Store holds every live promise for the node. Safe for concurrent use by
// many writers (the worker that completes a promise may run on a different
// goroutine than the worker awaiting it).
type Store struct {
	mu       sync.Mutex
	promises map[ID]*entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{promises: make(map[ID]*entry)}
}

// Create registers a new pending promise for id. Re-creating an id that
// already exists is a no-op that leaves the existing entry unchanged, so replay of a
// Create-triggering oplog entry is safe.
func (s *Store) Create(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.promises[id]; ok {
		return
	}
	s.promises[id] = &entry{snapshot: Snapshot{State: StatePending}}
}

// Get returns id's current snapshot, or golemerr.PromiseNotFound if it was
// never created.
func (s *Store) Get(id ID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.promises[id]
	if !ok {
		return Snapshot{}, golemerr.PromiseNotFound()
	}
	return e.snapshot, nil
}

// Complete delivers value to id, idempotently: a promise already in
// StateComplete is left untouched and Complete returns nil, matching the
// spec's "completing a promise twice yields the same state as completing it
// once". Every goroutine blocked in Await is woken with the (possibly
// pre-existing) completion value.
func (s *Store) Complete(id ID, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.promises[id]
	if !ok {
		return golemerr.PromiseNotFound()
	}
	if e.snapshot.State != StatePending {
		return nil
	}

	e.snapshot = Snapshot{State: StateComplete, Value: value}
	for _, w := range e.waiters {
		w <- e.snapshot
		close(w)
	}
	e.waiters = nil
	return nil
}

// Drop marks id as dropped: any waiter is woken with golemerr.PromiseDropped
// and subsequent Complete calls are no-ops. Used when the worker that owns
// the promise exits or is deleted before it is ever completed.
func (s *Store) Drop(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.promises[id]
	if !ok {
		return golemerr.PromiseNotFound()
	}
	if e.snapshot.State != StatePending {
		return nil
	}

	e.snapshot = Snapshot{State: StateDropped}
	for _, w := range e.waiters {
		w <- e.snapshot
		close(w)
	}
	e.waiters = nil
	return nil
}

// Await blocks until id completes, is dropped, or ctx is cancelled. If the
// promise is already resolved it returns immediately without suspending the
// caller's goroutine.
func (s *Store) Await(ctx context.Context, id ID) (Snapshot, error) {
	s.mu.Lock()
	e, ok := s.promises[id]
	if !ok {
		s.mu.Unlock()
		return Snapshot{}, golemerr.PromiseNotFound()
	}
	if e.snapshot.State != StatePending {
		snap := e.snapshot
		s.mu.Unlock()
		return snap, nil
	}

	ch := make(chan Snapshot, 1)
	e.waiters = append(e.waiters, ch)
	s.mu.Unlock()

	select {
	case snap := <-ch:
		if snap.State == StateDropped {
			return snap, golemerr.PromiseDropped()
		}
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
