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

// Package scheduler is the executor node's single logical timer wheel: a
// persistent set of deadline-keyed actions (promise completion, oplog
// archival) that survive restart: a ticker loop that fires each action no
// earlier than its deadline, gated on leader election for the guarantee
// that in a multi-node
// fleet an action fires on at most one node.
package scheduler

import (
	"github.com/google/uuid"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// ActionKind identifies which scheduled action an Entry carries.
type ActionKind string

const (
	ActionCompletePromise ActionKind = "CompletePromise"
	ActionArchiveOplog    ActionKind = "ArchiveOplog"
)

// Action is a deferred unit of work. Exactly one of the two payload
// structs is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	CompletePromise *CompletePromiseAction
	ArchiveOplog    *ArchiveOplogAction
}

// CompletePromiseAction resolves a promise once its deadline arrives (e.g.
// a worker's `sleep` call, modelled as a promise completed by the
// scheduler rather than by another worker).
type CompletePromiseAction struct {
	AccountID string
	PromiseID string // promise.ID encoded as "componentID/workerName/oplogIdx"
	Value     []byte
}

// ArchiveOplogAction hands a contiguous range of committed oplog entries to
// the cold-storage tier. NextAfter schedules the following archival pass
// for the same worker, so archival is a recurring chain rather than a
// single one-shot action.
type ArchiveOplogAction struct {
	Worker         oplog.WorkerID
	LastOplogIndex oplog.Index
	NextAfterMs    int64
}

// Entry is one row in the timer wheel: a unique ID, the millisecond
// deadline it may not fire before, and the action to run.
type Entry struct {
	ID           uuid.UUID
	DeadlineMs   int64
	Action       Action
}

// NewEntry builds an Entry with a fresh ID.
func NewEntry(deadlineMs int64, action Action) Entry {
	return Entry{ID: uuid.New(), DeadlineMs: deadlineMs, Action: action}
}
