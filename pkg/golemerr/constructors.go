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

package golemerr

import "strings"

// InvalidRequest builds a TypeInvalidRequest error.
func InvalidRequest(details string) *Error {
	return &Error{Type: TypeInvalidRequest, Details: details}
}

// WorkerAlreadyExists builds a TypeWorkerAlreadyExists error.
func WorkerAlreadyExists() *Error {
	return &Error{Type: TypeWorkerAlreadyExists}
}

// WorkerNotFound builds a TypeWorkerNotFound error.
func WorkerNotFound() *Error {
	return &Error{Type: TypeWorkerNotFound}
}

// WorkerCreationFailed builds a TypeWorkerCreationFailed error.
func WorkerCreationFailed() *Error {
	return &Error{Type: TypeWorkerCreationFailed}
}

// FailedToResumeWorker wraps cause with the reason the resume attempt failed.
func FailedToResumeWorker(reason string, cause error) *Error {
	return &Error{Type: TypeFailedToResumeWorker, Details: reason, Cause: cause}
}

// ComponentDownloadFailed builds a TypeComponentDownloadFailed error.
func ComponentDownloadFailed(cause error) *Error {
	return &Error{Type: TypeComponentDownloadFailed, Cause: cause}
}

// ComponentParseFailed builds a TypeComponentParseFailed error.
func ComponentParseFailed(cause error) *Error {
	return &Error{Type: TypeComponentParseFailed, Cause: cause}
}

// GetLatestVersionOfComponentFailed builds a TypeGetLatestVersionOfComponentFailed error.
func GetLatestVersionOfComponentFailed(cause error) *Error {
	return &Error{Type: TypeGetLatestVersionOfComponentFailed, Cause: cause}
}

// PromiseNotFound builds a TypePromiseNotFound error.
func PromiseNotFound() *Error {
	return &Error{Type: TypePromiseNotFound}
}

// PromiseDropped builds a TypePromiseDropped error.
func PromiseDropped() *Error {
	return &Error{Type: TypePromiseDropped}
}

// PromiseAlreadyCompleted builds a TypePromiseAlreadyCompleted error.
func PromiseAlreadyCompleted() *Error {
	return &Error{Type: TypePromiseAlreadyCompleted}
}

// Interrupted builds a TypeInterrupted error with the given kind.
func Interrupted(kind InterruptKind) *Error {
	return &Error{Type: TypeInterrupted, Kind: kind}
}

// ParamTypeMismatch builds a TypeParamTypeMismatch error.
func ParamTypeMismatch(details string) *Error {
	return &Error{Type: TypeParamTypeMismatch, Details: details}
}

// NoValueInMessage builds a TypeNoValueInMessage error.
func NoValueInMessage() *Error {
	return &Error{Type: TypeNoValueInMessage}
}

// ValueMismatch builds a TypeValueMismatch error.
func ValueMismatch(details string) *Error {
	return &Error{Type: TypeValueMismatch, Details: details}
}

// UnexpectedOplogEntry builds a TypeUnexpectedOplogEntry error describing the
// divergence between the replayed and the freshly produced entry.
func UnexpectedOplogEntry(expected, got string) *Error {
	return &Error{Type: TypeUnexpectedOplogEntry, Expected: expected, Got: got}
}

// Runtime builds a TypeRuntime error (a WASM trap).
func Runtime(details string) *Error {
	return &Error{Type: TypeRuntime, Details: details}
}

// OutOfMemory builds a TypeOutOfMemory error.
func OutOfMemory(details string) *Error {
	return &Error{Type: TypeOutOfMemory, Details: details}
}

// StackOverflow builds a TypeStackOverflow error.
func StackOverflow(details string) *Error {
	return &Error{Type: TypeStackOverflow, Details: details}
}

// FromTrap maps a WASM engine trap message into the taxonomy: memory and
// call-stack exhaustion get their own non-retriable types, every other
// implementation-defined trap becomes Unknown with the trap text preserved.
func FromTrap(trapText string) *Error {
	lower := strings.ToLower(trapText)
	switch {
	case strings.Contains(lower, "out of memory") || strings.Contains(lower, "memory limit"):
		return OutOfMemory(trapText)
	case strings.Contains(lower, "stack overflow") || strings.Contains(lower, "call stack exhausted"):
		return StackOverflow(trapText)
	default:
		return &Error{Type: TypeUnknown, Details: trapText}
	}
}

// InvalidShardId builds a TypeInvalidShardId error naming the shard the
// request landed on and the shards actually owned by this node.
func InvalidShardId(shardID uint32, ownedShardIDs []uint32) *Error {
	return &Error{Type: TypeInvalidShardId, ShardID: shardID, ShardIDs: ownedShardIDs}
}

// PreviousInvocationFailed builds a TypePreviousInvocationFailed error.
func PreviousInvocationFailed(details string) *Error {
	return &Error{Type: TypePreviousInvocationFailed, Details: details}
}

// Unknown wraps any error that doesn't fit the taxonomy.
func Unknown(cause error) *Error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &Error{Type: TypeUnknown, Details: details, Cause: cause}
}
