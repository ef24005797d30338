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

package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store is the persistent backing for scheduled entries, keyed
// by entry ID. Implementations must survive
// process restart; late delivery of a due entry is acceptable, early
// delivery is not.
type Store interface {
	// Put persists e so it is returned by Due once its deadline passes.
	Put(ctx context.Context, e Entry) error

	// Due returns every entry whose DeadlineMs is <= nowMs, for dispatch.
	Due(ctx context.Context, nowMs int64) ([]Entry, error)

	// Delete removes an entry once its action has been dispatched.
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemoryStore is an in-memory Store for tests and single-node,
// non-durable deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]Entry)}
}

func (s *MemoryStore) Put(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ID] = e
	return nil
}

func (s *MemoryStore) Due(ctx context.Context, nowMs int64) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Entry
	for _, e := range s.entries {
		if e.DeadlineMs <= nowMs {
			due = append(due, e)
		}
	}
	return due, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Len reports how many entries remain scheduled, for tests.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
