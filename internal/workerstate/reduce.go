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

import "github.com/golemcloud/worker-executor/internal/oplog"

// Reduce folds a single oplog entry into prev, producing the next
// WorkerStatusRecord. It is a pure function: applying the same prefix of
// entries to Empty() twice yields identical records, which is the
// replay-determinism invariant the cache depends on.
func Reduce(prev Record, entry oplog.Entry) Record {
	next := prev.clone()
	next.OplogIdx = entry.Index

	switch entry.Kind {
	case oplog.KindCreate:
		next.Status = StatusIdle
		next.ComponentVersion = entry.ComponentVersion
		next.ComponentSize = entry.ComponentSize
		next.TotalLinearMemorySize = entry.InitialMemory
		next.ActivePlugins = append([]string(nil), entry.ActivePlugins...)

	case oplog.KindPendingWorkerInvocation:
		next.PendingInvocations = appendIfMissing(next.PendingInvocations, entry.IdempotencyKey)

	case oplog.KindExportedFunctionInvoked:
		next.Status = StatusRunning
		next.CurrentIdempotencyKey = entry.IdempotencyKey
		next.PendingInvocations = removeString(next.PendingInvocations, entry.IdempotencyKey)
		next.ConsecutiveErrors = 0

	case oplog.KindExportedFunctionCompleted:
		next.Status = StatusIdle
		next.ConsecutiveErrors = 0
		if next.CurrentIdempotencyKey != "" {
			next.InvocationResults[next.CurrentIdempotencyKey] = entry.Index
		}

	case oplog.KindSuspend:
		next.Status = StatusSuspended

	case oplog.KindInterrupted:
		next.Status = StatusInterrupted

	case oplog.KindExited:
		next.Status = StatusExited

	case oplog.KindError:
		next.ConsecutiveErrors++
		policy := DefaultRetryPolicy()
		if next.OverriddenRetryConfig != nil {
			policy = *next.OverriddenRetryConfig
		}
		if entry.WorkerError != nil &&
			golemErrFromSerializable(*entry.WorkerError).Retryable() &&
			next.ConsecutiveErrors < policy.MaxAttempts {
			next.Status = StatusRetrying
		} else {
			next.Status = StatusFailed
		}

	case oplog.KindJump:
		next.DeletedRegions = append(next.DeletedRegions, entry.JumpRegion)

	case oplog.KindChangeRetryPolicy:
		if entry.RetryPolicy != nil {
			next.OverriddenRetryConfig = &RetryPolicy{
				MaxAttempts:     entry.RetryPolicy.MaxAttempts,
				MinDelayMillis:  entry.RetryPolicy.MinDelayMillis,
				MaxDelayMillis:  entry.RetryPolicy.MaxDelayMillis,
				Multiplier:      entry.RetryPolicy.Multiplier,
				MaxJitterFactor: entry.RetryPolicy.MaxJitterFactor,
			}
		}

	case oplog.KindPendingUpdate:
		next.PendingUpdates = append(next.PendingUpdates, entry.TargetVersion)

	case oplog.KindSuccessfulUpdate:
		next.PendingUpdates = removeUint64(next.PendingUpdates, entry.TargetVersion)
		next.SuccessfulUpdates = append(next.SuccessfulUpdates, entry.TargetVersion)
		next.ComponentVersion = entry.TargetVersion

	case oplog.KindFailedUpdate:
		next.PendingUpdates = removeUint64(next.PendingUpdates, entry.TargetVersion)
		next.FailedUpdates = append(next.FailedUpdates, entry.TargetVersion)

	case oplog.KindGrowMemory:
		next.TotalLinearMemorySize += entry.MemoryDelta

	case oplog.KindCreateResource:
		next.OwnedResources[entry.ResourceID] = ResourceState{
			CreatedAtMillis: entry.Timestamp,
			IndexedKey:      entry.IndexedKey,
		}

	case oplog.KindDropResource:
		delete(next.OwnedResources, entry.ResourceID)

	case oplog.KindDescribeResource:
		if state, ok := next.OwnedResources[entry.ResourceID]; ok {
			state.IndexedKey = entry.IndexedKey
			next.OwnedResources[entry.ResourceID] = state
		}

	case oplog.KindLog:
		// Journaled for the Connect stream; no effect on the derived record.
	}

	return next
}

func appendIfMissing(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

func removeUint64(list []uint64, v uint64) []uint64 {
	out := list[:0:0]
	for _, existing := range list {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
