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

// Package workerstate implements the worker state machine and its derived
// status cache: a thread-safe in-memory map that is the source of truth,
// with best-effort persistence to an oplog-backed tier so readers need not
// replay the full oplog to answer basic questions about a worker.
package workerstate

import "github.com/golemcloud/worker-executor/internal/oplog"

// Status is one of the seven states a worker can be in.
type Status string

const (
	StatusIdle        Status = "Idle"
	StatusRunning     Status = "Running"
	StatusSuspended   Status = "Suspended"
	StatusRetrying    Status = "Retrying"
	StatusFailed      Status = "Failed"
	StatusExited      Status = "Exited"
	StatusInterrupted Status = "Interrupted"
)

// transitions enumerates the permissible Status -> Status edges.
// Every state's row lists Interrupted; CanTransition also allows from == to.
var transitions = map[Status]map[Status]bool{
	StatusIdle:        {StatusRunning: true, StatusInterrupted: true},
	StatusRunning:     {StatusIdle: true, StatusRetrying: true, StatusSuspended: true, StatusExited: true, StatusInterrupted: true},
	StatusRetrying:    {StatusRunning: true, StatusFailed: true, StatusInterrupted: true},
	StatusSuspended:   {StatusRunning: true, StatusInterrupted: true},
	StatusFailed:      {StatusInterrupted: true},
	StatusExited:      {StatusInterrupted: true},
	StatusInterrupted: {StatusRunning: true, StatusInterrupted: true},
}

// CanTransition reports whether moving from `from` to `to` is permitted.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return transitions[from][to]
}

// IsTerminal reports whether status is terminal with respect to new user
// invocations (introspection remains possible regardless).
func IsTerminal(s Status) bool {
	return s == StatusFailed || s == StatusExited
}

// RetryPolicy is the exponential-backoff policy governing Retrying -> Running
// transitions, scoped by ChangeRetryPolicy oplog entries.
type RetryPolicy struct {
	MaxAttempts     uint32
	MinDelayMillis  uint64
	MaxDelayMillis  uint64
	Multiplier      float64
	MaxJitterFactor float64
}

// DefaultRetryPolicy matches the configuration default used when no
// ChangeRetryPolicy entry is in scope.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		MinDelayMillis:  1000,
		MaxDelayMillis:  60000,
		Multiplier:      2.0,
		MaxJitterFactor: 0.1,
	}
}

// ResourceState describes a host-visible resource owned by a worker.
type ResourceState struct {
	CreatedAtMillis int64
	IndexedKey      string
}

// Record is the WorkerStatusRecord: a derived snapshot maintained so that
// readers need not replay the oplog to answer basic questions. Invariant:
// applying any prefix of the oplog to the empty record twice yields
// identical records (replay determinism); discarding the record must not
// change observable behavior, since it is purely a cache.
type Record struct {
	Status                Status
	DeletedRegions         []oplog.Region
	OverriddenRetryConfig  *RetryPolicy
	PendingInvocations     []string // idempotency keys awaiting execution
	PendingUpdates         []uint64 // target component versions
	FailedUpdates          []uint64
	SuccessfulUpdates      []uint64
	InvocationResults      map[string]oplog.Index // idempotency key -> oplog index of terminal entry
	CurrentIdempotencyKey  string
	ComponentVersion       uint64
	ComponentSize          uint64
	TotalLinearMemorySize  uint64
	OwnedResources         map[uint64]ResourceState
	OplogIdx               oplog.Index // highest index reflected in this record
	ActivePlugins          []string

	// ConsecutiveErrors counts Error entries since the last successful
	// completion (or invocation start); the fold compares it against the
	// retry policy in scope to decide Retrying vs Failed.
	ConsecutiveErrors uint32
}

// Empty returns the zero-value record new workers start from.
func Empty() Record {
	return Record{
		Status:            StatusIdle,
		InvocationResults: make(map[string]oplog.Index),
		OwnedResources:    make(map[uint64]ResourceState),
	}
}

// clone deep-copies r so snapshots handed to callers are immutable.
func (r Record) clone() Record {
	out := r
	out.DeletedRegions = append([]oplog.Region(nil), r.DeletedRegions...)
	out.PendingInvocations = append([]string(nil), r.PendingInvocations...)
	out.PendingUpdates = append([]uint64(nil), r.PendingUpdates...)
	out.FailedUpdates = append([]uint64(nil), r.FailedUpdates...)
	out.SuccessfulUpdates = append([]uint64(nil), r.SuccessfulUpdates...)
	out.ActivePlugins = append([]string(nil), r.ActivePlugins...)
	out.InvocationResults = make(map[string]oplog.Index, len(r.InvocationResults))
	for k, v := range r.InvocationResults {
		out.InvocationResults[k] = v
	}
	out.OwnedResources = make(map[uint64]ResourceState, len(r.OwnedResources))
	for k, v := range r.OwnedResources {
		out.OwnedResources[k] = v
	}
	if r.OverriddenRetryConfig != nil {
		cp := *r.OverriddenRetryConfig
		out.OverriddenRetryConfig = &cp
	}
	return out
}
