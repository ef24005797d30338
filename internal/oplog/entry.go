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

// Package oplog defines a worker's durable operation log: a strictly
// increasing, dense sequence of OplogEntry values, and the storage
// interfaces backends implement to append, read, and archive them.
package oplog

import "github.com/golemcloud/worker-executor/pkg/golemerr"

// Index is a 1-based, monotone, dense position in a worker's oplog.
type Index uint64

// EntryKind identifies the semantic meaning of an OplogEntry.
type EntryKind string

const (
	KindCreate                   EntryKind = "Create"
	KindImportedFunctionInvoked  EntryKind = "ImportedFunctionInvoked"
	KindExportedFunctionInvoked  EntryKind = "ExportedFunctionInvoked"
	KindExportedFunctionCompleted EntryKind = "ExportedFunctionCompleted"
	KindSuspend                  EntryKind = "Suspend"
	KindInterrupted              EntryKind = "Interrupted"
	KindExited                   EntryKind = "Exited"
	KindError                    EntryKind = "Error"
	KindJump                     EntryKind = "Jump"
	KindChangeRetryPolicy        EntryKind = "ChangeRetryPolicy"
	KindBeginAtomicRegion        EntryKind = "BeginAtomicRegion"
	KindEndAtomicRegion          EntryKind = "EndAtomicRegion"
	KindBeginRemoteWrite         EntryKind = "BeginRemoteWrite"
	KindEndRemoteWrite           EntryKind = "EndRemoteWrite"
	KindPendingWorkerInvocation  EntryKind = "PendingWorkerInvocation"
	KindPendingUpdate            EntryKind = "PendingUpdate"
	KindSuccessfulUpdate         EntryKind = "SuccessfulUpdate"
	KindFailedUpdate             EntryKind = "FailedUpdate"
	KindGrowMemory               EntryKind = "GrowMemory"
	KindCreateResource           EntryKind = "CreateResource"
	KindDropResource             EntryKind = "DropResource"
	KindDescribeResource         EntryKind = "DescribeResource"
	KindLog                      EntryKind = "Log"
)

// WrappedFunctionType classifies the determinism/side-effect shape of a host
// call recorded by an ImportedFunctionInvoked entry.
type WrappedFunctionType string

const (
	ReadLocal          WrappedFunctionType = "ReadLocal"
	ReadRemote         WrappedFunctionType = "ReadRemote"
	WriteLocal         WrappedFunctionType = "WriteLocal"
	WriteRemote        WrappedFunctionType = "WriteRemote"
	WriteRemoteBatched WrappedFunctionType = "WriteRemoteBatched"
)

// Region is a half-open range of oplog indices, [Start, End).
type Region struct {
	Start Index
	End   Index
}

// Overlaps reports whether r and o share any index.
func (r Region) Overlaps(o Region) bool {
	return r.Start < o.End && o.Start < r.End
}

// Entry is one record in a worker's oplog.
type Entry struct {
	Index     Index
	Kind      EntryKind
	Timestamp int64 // millis since epoch

	// Create
	ComponentVersion uint64
	Args             []string
	Env              map[string]string
	ParentWorkerID   string
	InitialMemory    uint64
	ComponentSize    uint64
	ActivePlugins    []string

	// ImportedFunctionInvoked
	WrappedFunctionType WrappedFunctionType
	FunctionName        string
	Payload             *Payload
	HostError           *golemerr.Serializable

	// ExportedFunctionInvoked
	IdempotencyKey string
	Request        *Payload

	// ExportedFunctionCompleted
	Response     *Payload
	FuelConsumed int64

	// Error
	WorkerError *golemerr.Serializable

	// Jump
	JumpRegion Region

	// ChangeRetryPolicy
	RetryPolicy *RetryPolicyOverride

	// PendingUpdate / SuccessfulUpdate / FailedUpdate
	TargetVersion uint64
	UpdateDetails string

	// GrowMemory
	MemoryDelta uint64

	// CreateResource / DropResource / DescribeResource
	ResourceID  uint64
	ResourceURI string
	IndexedKey  string

	// Log
	LogLevel   string
	LogMessage string
}

// RetryPolicyOverride scopes a ChangeRetryPolicy entry's new defaults.
type RetryPolicyOverride struct {
	MaxAttempts     uint32
	MinDelayMillis  uint64
	MaxDelayMillis  uint64
	Multiplier      float64
	MaxJitterFactor float64
}
