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

package workerstate

import (
	"context"
	"sync"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// Persister is the narrow seam a Store uses to best-effort persist status
// records, so losing the cache never changes observable behavior. Backends
// that don't care about readable status snapshots may leave this nil.
type Persister interface {
	PutStatus(ctx context.Context, worker oplog.WorkerID, record Record) error
}

// Store holds the in-memory WorkerStatusRecord per worker, the source of
// truth for readers; persistence is best-effort so that discarding the
// cache never changes observable behavior (the oplog remains authoritative).
type Store struct {
	mu        sync.RWMutex
	records   map[workerKey]Record
	persister Persister
}

type workerKey struct {
	componentID string
	workerName  string
}

func keyOf(w oplog.WorkerID) workerKey {
	return workerKey{componentID: w.ComponentID, workerName: w.WorkerName}
}

// New creates an empty Store. persister may be nil.
func New(persister Persister) *Store {
	return &Store{
		records:   make(map[workerKey]Record),
		persister: persister,
	}
}

// Get returns an immutable snapshot of worker's current record, creating an
// Empty one if none exists yet.
func (s *Store) Get(worker oplog.WorkerID) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[keyOf(worker)]
	if !ok {
		return Empty()
	}
	return r.clone()
}

// Apply performs a compare-and-swap update: next is only committed if
// next.OplogIdx is strictly greater than the currently stored record's
// OplogIdx, resolving concurrent writers by last-write-wins keyed on the
// highest oplog index observed (the WorkerStatusRecord concurrency
// resolution). Returns golemerr.TypeUnexpectedOplogEntry if next is stale.
func (s *Store) Apply(ctx context.Context, worker oplog.WorkerID, next Record) error {
	s.mu.Lock()
	current, exists := s.records[keyOf(worker)]
	if exists && next.OplogIdx <= current.OplogIdx {
		s.mu.Unlock()
		return &golemerr.Error{
			Type:    golemerr.TypeUnexpectedOplogEntry,
			Details: "stale WorkerStatusRecord write rejected by CAS",
		}
	}
	if exists && !CanTransition(current.Status, next.Status) {
		s.mu.Unlock()
		return golemerr.InvalidRequest("illegal worker state transition")
	}
	s.records[keyOf(worker)] = next.clone()
	s.mu.Unlock()

	if s.persister != nil {
		// Best-effort: persistence failure does not roll back the in-memory
		// record, which remains the source of truth for this process.
		_ = s.persister.PutStatus(ctx, worker, next)
	}
	return nil
}

// Delete removes worker's record entirely (used when a worker is deleted,
// not merely terminated).
func (s *Store) Delete(worker oplog.WorkerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, keyOf(worker))
}
