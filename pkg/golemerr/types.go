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

// Package golemerr is the shared error taxonomy used across oplog, replay,
// workerstate, hostfunc, and workerrpc. Every error here carries a Type for
// classification (retry policy, API response mapping) and wraps the
// underlying cause where one exists, so errors.Is/errors.As work across
// package boundaries.
package golemerr

import "fmt"

// Type classifies an Error for programmatic handling: retry decisions,
// wire-response mapping, and fatal-vs-recoverable routing.
type Type string

const (
	// TypeInvalidRequest marks malformed input. Non-retriable.
	TypeInvalidRequest Type = "InvalidRequest"

	// TypeWorkerAlreadyExists marks a CreateWorker call for an id already in use.
	TypeWorkerAlreadyExists Type = "WorkerAlreadyExists"

	// TypeWorkerNotFound marks an operation against an unknown WorkerId.
	TypeWorkerNotFound Type = "WorkerNotFound"

	// TypeWorkerCreationFailed marks a failure constructing a new worker.
	TypeWorkerCreationFailed Type = "WorkerCreationFailed"

	// TypeFailedToResumeWorker wraps an inner error encountered resuming a worker.
	TypeFailedToResumeWorker Type = "FailedToResumeWorker"

	// TypeComponentDownloadFailed marks a failure fetching component bytes.
	TypeComponentDownloadFailed Type = "ComponentDownloadFailed"

	// TypeComponentParseFailed marks a failure parsing a downloaded component.
	TypeComponentParseFailed Type = "ComponentParseFailed"

	// TypeGetLatestVersionOfComponentFailed marks a failure resolving the
	// latest version of a component.
	TypeGetLatestVersionOfComponentFailed Type = "GetLatestVersionOfComponentFailed"

	// TypePromiseNotFound marks a reference to an unknown promise.
	TypePromiseNotFound Type = "PromiseNotFound"

	// TypePromiseDropped marks use of a promise that was dropped before completion.
	TypePromiseDropped Type = "PromiseDropped"

	// TypePromiseAlreadyCompleted marks a second completion of the same promise.
	TypePromiseAlreadyCompleted Type = "PromiseAlreadyCompleted"

	// TypeInterrupted marks the worker as interrupted; see InterruptKind.
	TypeInterrupted Type = "Interrupted"

	// TypeParamTypeMismatch marks a codec error on a function parameter.
	TypeParamTypeMismatch Type = "ParamTypeMismatch"

	// TypeNoValueInMessage marks a missing value where one was expected.
	TypeNoValueInMessage Type = "NoValueInMessage"

	// TypeValueMismatch marks a value that does not conform to its AnalysedType.
	TypeValueMismatch Type = "ValueMismatch"

	// TypeUnexpectedOplogEntry marks replay divergence. Fatal.
	TypeUnexpectedOplogEntry Type = "UnexpectedOplogEntry"

	// TypeRuntime marks a WASM trap.
	TypeRuntime Type = "Runtime"

	// TypeOutOfMemory marks a worker that exceeded its linear-memory cap.
	// Non-retriable: replay deterministically reproduces the same growth.
	TypeOutOfMemory Type = "OutOfMemory"

	// TypeStackOverflow marks a guest call-stack exhaustion trap.
	// Non-retriable for the same reason as OutOfMemory.
	TypeStackOverflow Type = "StackOverflow"

	// TypeInvalidShardId marks a request routed to the wrong executor node.
	TypeInvalidShardId Type = "InvalidShardId"

	// TypePreviousInvocationFailed marks an invocation attempt against a
	// worker already stuck in the Failed state.
	TypePreviousInvocationFailed Type = "PreviousInvocationFailed"

	// TypeUnknown covers everything else.
	TypeUnknown Type = "Unknown"
)

// InterruptKind distinguishes the four ways a worker can be interrupted.
type InterruptKind string

const (
	InterruptKindInterrupt InterruptKind = "Interrupt"
	InterruptKindRestart   InterruptKind = "Restart"
	InterruptKindSuspend   InterruptKind = "Suspend"
	InterruptKindJump      InterruptKind = "Jump"
)

// Error is the single error type shared by every package in this module.
// Fields unused by a given Type are left zero.
type Error struct {
	Type Type

	// Details is a free-form description, populated for InvalidRequest,
	// FailedToResumeWorker, Runtime, PreviousInvocationFailed, Unknown,
	// ParamTypeMismatch, ValueMismatch, OutOfMemory, and StackOverflow.
	Details string

	// Kind is set only for TypeInterrupted.
	Kind InterruptKind

	// Expected/Got are set only for TypeUnexpectedOplogEntry.
	Expected string
	Got      string

	// ShardID/ShardIDs are set only for TypeInvalidShardId.
	ShardID  uint32
	ShardIDs []uint32

	Cause error
}

func (e *Error) Error() string {
	switch e.Type {
	case TypeInvalidRequest:
		return fmt.Sprintf("invalid request: %s", e.Details)
	case TypeWorkerAlreadyExists:
		return "worker already exists"
	case TypeWorkerNotFound:
		return "worker not found"
	case TypeWorkerCreationFailed:
		return "worker creation failed"
	case TypeFailedToResumeWorker:
		if e.Cause != nil {
			return fmt.Sprintf("failed to resume worker: %s: %v", e.Details, e.Cause)
		}
		return fmt.Sprintf("failed to resume worker: %s", e.Details)
	case TypeComponentDownloadFailed:
		return "component download failed"
	case TypeComponentParseFailed:
		return "component parse failed"
	case TypeGetLatestVersionOfComponentFailed:
		return "failed to resolve latest component version"
	case TypePromiseNotFound:
		return "promise not found"
	case TypePromiseDropped:
		return "promise dropped"
	case TypePromiseAlreadyCompleted:
		return "promise already completed"
	case TypeInterrupted:
		return fmt.Sprintf("interrupted: %s", e.Kind)
	case TypeParamTypeMismatch:
		return "parameter type mismatch"
	case TypeNoValueInMessage:
		return "no value in message"
	case TypeValueMismatch:
		return "value mismatch"
	case TypeUnexpectedOplogEntry:
		return fmt.Sprintf("unexpected oplog entry: expected %s, got %s", e.Expected, e.Got)
	case TypeRuntime:
		return fmt.Sprintf("runtime error: %s", e.Details)
	case TypeOutOfMemory:
		return fmt.Sprintf("out of memory: %s", e.Details)
	case TypeStackOverflow:
		return fmt.Sprintf("stack overflow: %s", e.Details)
	case TypeInvalidShardId:
		return fmt.Sprintf("invalid shard id %d, valid shards: %v", e.ShardID, e.ShardIDs)
	case TypePreviousInvocationFailed:
		return fmt.Sprintf("previous invocation failed: %s", e.Details)
	default:
		return fmt.Sprintf("unknown error: %s", e.Details)
	}
}

// Unwrap supports errors.Is/errors.As over the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Type, so callers can
// write errors.Is(err, &golemerr.Error{Type: golemerr.TypeWorkerNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Type == "" {
		return false
	}
	return e.Type == t.Type
}

// Retryable reports whether the operation that produced this error should be
// retried per the worker's RetryPolicy. Divergence and malformed-input
// errors are never retryable; transient/runtime failures are.
func (e *Error) Retryable() bool {
	switch e.Type {
	case TypeInvalidRequest, TypeUnexpectedOplogEntry, TypeWorkerAlreadyExists,
		TypeWorkerNotFound, TypePromiseNotFound, TypePromiseDropped,
		TypePromiseAlreadyCompleted, TypeParamTypeMismatch, TypeNoValueInMessage,
		TypeValueMismatch, TypeInvalidShardId, TypePreviousInvocationFailed,
		TypeOutOfMemory, TypeStackOverflow:
		return false
	default:
		return true
	}
}
