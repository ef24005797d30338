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

// Interface hierarchy mirrors the storage backend this package is grounded
// on: Store combines Appender, Reader, PayloadStore and Archiver, so every
// tier implements all four and callers use them directly.
package oplog

import (
	"context"
	"io"
)

// WorkerID names the oplog a call addresses: (component_id, worker_name).
type WorkerID struct {
	ComponentID string
	WorkerName  string
}

// Appender is the core interface for oplog storage. This is the minimal
// interface a tier must implement for basic worker execution.
type Appender interface {
	// Append writes entry as the next index in worker's oplog. The caller
	// guarantees entry.Index is exactly one past the tier's current last
	// index; implementations return an error if that invariant is violated.
	Append(ctx context.Context, worker WorkerID, entry Entry) error
}

// Reader is the core interface for replaying a worker's oplog.
type Reader interface {
	// Read returns entries in [from, to] inclusive, ordered by Index.
	Read(ctx context.Context, worker WorkerID, from, to Index) ([]Entry, error)

	// LastIndex returns the highest index written for worker, or 0 if empty.
	LastIndex(ctx context.Context, worker WorkerID) (Index, error)
}

// PayloadStore is the interface for externalized payload storage, holding
// payloads above the inline threshold. Every Store implements it:
//
//	err := store.PutPayload(ctx, worker, payload.PayloadID, data)
type PayloadStore interface {
	PutPayload(ctx context.Context, worker WorkerID, payloadID string, data []byte) error
	GetPayload(ctx context.Context, worker WorkerID, payloadID string) ([]byte, error)
}

// Archiver marks a worker's oplog as archived up to upTo. Every tier in this
// module only records that per-worker watermark; none moves entries out of
// the hot tier.
type Archiver interface {
	Archive(ctx context.Context, worker WorkerID, upTo Index) error
}

// Store composes the full interface a complete oplog tier implements.
type Store interface {
	Appender
	Reader
	PayloadStore
	Archiver
	io.Closer
}
