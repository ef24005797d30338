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

// Package memory provides an in-memory oplog tier for tests and
// single-node, non-durable deployments.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

var _ oplog.Store = (*Store)(nil)

type workerKey struct {
	componentID string
	workerName  string
}

func keyOf(w oplog.WorkerID) workerKey {
	return workerKey{componentID: w.ComponentID, workerName: w.WorkerName}
}

// Store is an in-memory oplog.Store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	entries  map[workerKey][]oplog.Entry
	payloads map[workerKey]map[string][]byte
	archived map[workerKey]oplog.Index
	dropped  map[workerKey]oplog.Index
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		entries:  make(map[workerKey][]oplog.Entry),
		payloads: make(map[workerKey]map[string][]byte),
		archived: make(map[workerKey]oplog.Index),
		dropped:  make(map[workerKey]oplog.Index),
	}
}

// Append implements oplog.Appender.
func (s *Store) Append(ctx context.Context, worker oplog.WorkerID, entry oplog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(worker)
	existing := s.entries[k]
	expected := s.dropped[k] + 1
	if len(existing) > 0 {
		expected = existing[len(existing)-1].Index + 1
	}
	if entry.Index != expected {
		return fmt.Errorf("oplog append out of order: got index %d, expected %d", entry.Index, expected)
	}
	s.entries[k] = append(existing, entry)
	return nil
}

// Read implements oplog.Reader.
func (s *Store) Read(ctx context.Context, worker oplog.WorkerID, from, to oplog.Index) ([]oplog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[keyOf(worker)]
	var out []oplog.Entry
	for _, e := range all {
		if e.Index >= from && e.Index <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastIndex implements oplog.Reader.
func (s *Store) LastIndex(ctx context.Context, worker oplog.WorkerID) (oplog.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := keyOf(worker)
	all := s.entries[k]
	if len(all) == 0 {
		return s.dropped[k], nil
	}
	return all[len(all)-1].Index, nil
}

// DropPrefixUpTo implements oplog.PrefixDropper, discarding entries with
// index at or below upTo once archival has handed them off.
func (s *Store) DropPrefixUpTo(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(worker)
	kept := s.entries[k][:0:0]
	for _, e := range s.entries[k] {
		if e.Index > upTo {
			kept = append(kept, e)
		}
	}
	s.entries[k] = kept
	if upTo > s.dropped[k] {
		s.dropped[k] = upTo
	}
	return nil
}

// PutPayload implements oplog.PayloadStore.
func (s *Store) PutPayload(ctx context.Context, worker oplog.WorkerID, payloadID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(worker)
	if s.payloads[k] == nil {
		s.payloads[k] = make(map[string][]byte)
	}
	s.payloads[k][payloadID] = data
	return nil
}

// GetPayload implements oplog.PayloadStore.
func (s *Store) GetPayload(ctx context.Context, worker oplog.WorkerID, payloadID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.payloads[keyOf(worker)][payloadID]
	if !ok {
		return nil, fmt.Errorf("payload not found: %s", payloadID)
	}
	return data, nil
}

// Archive implements oplog.Archiver. The in-memory tier has no separate
// cold storage, so Archive only records the archived watermark; entries
// remain readable for simplicity in tests.
func (s *Store) Archive(ctx context.Context, worker oplog.WorkerID, upTo oplog.Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.archived[keyOf(worker)] = upTo
	return nil
}

// ArchivedUpTo returns the last index archived for worker, for tests.
func (s *Store) ArchivedUpTo(worker oplog.WorkerID) oplog.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archived[keyOf(worker)]
}

// Close implements io.Closer.
func (s *Store) Close() error {
	return nil
}
