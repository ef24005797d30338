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

package replay

import (
	"context"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

// UpdateMode selects how a running worker moves to a new component version.
type UpdateMode string

const (
	// UpdateAutomatic replays the existing oplog against the new component
	// version from scratch, relying on the new version producing the same
	// observable results for already-recorded host calls. Cheapest, but
	// fails if the new version's behavior has diverged.
	UpdateAutomatic UpdateMode = "Automatic"
	// UpdateSnapshotBased invokes the component's save/load-state exports to
	// serialize and restore memory directly, skipping replay entirely.
	// Required when Automatic update would diverge.
	UpdateSnapshotBased UpdateMode = "SnapshotBased"
)

// BeginUpdate records a PendingUpdate entry marking that worker is
// attempting to move to targetVersion via mode.
func (e *Engine) BeginUpdate(ctx context.Context, targetVersion uint64, mode UpdateMode, details string) (oplog.Index, error) {
	return e.Append(ctx, oplog.Entry{
		Kind:          oplog.KindPendingUpdate,
		TargetVersion: targetVersion,
		UpdateDetails: string(mode) + ": " + details,
	})
}

// BeginSnapshotUpdate records a PendingUpdate carrying the bytes the old
// component version's save export produced; on the worker's next start the
// new version's load export consumes them (see PendingSnapshot) instead of
// replaying the oplog against the new code.
func (e *Engine) BeginSnapshotUpdate(ctx context.Context, targetVersion uint64, snapshot []byte) (oplog.Index, error) {
	return e.Append(ctx, oplog.Entry{
		Kind:          oplog.KindPendingUpdate,
		TargetVersion: targetVersion,
		UpdateDetails: string(UpdateSnapshotBased),
		Payload:       &oplog.Payload{Inline: snapshot},
	})
}

// PendingSnapshot scans worker's recorded oplog for the newest snapshot
// update that has neither succeeded nor failed yet, returning its target
// version and saved bytes. ok is false when every recorded update is
// resolved - the normal case on a start with no upgrade in flight.
func PendingSnapshot(ctx context.Context, store oplog.Store, worker oplog.WorkerID) (targetVersion uint64, snapshot []byte, ok bool, err error) {
	last, err := store.LastIndex(ctx, worker)
	if err != nil {
		return 0, nil, false, err
	}
	if last == 0 {
		return 0, nil, false, nil
	}
	entries, err := store.Read(ctx, worker, 1, last)
	if err != nil {
		return 0, nil, false, err
	}

	pending := make(map[uint64][]byte)
	var order []uint64
	for _, e := range entries {
		switch e.Kind {
		case oplog.KindPendingUpdate:
			if e.UpdateDetails == string(UpdateSnapshotBased) && e.Payload != nil {
				if _, seen := pending[e.TargetVersion]; !seen {
					order = append(order, e.TargetVersion)
				}
				pending[e.TargetVersion] = e.Payload.Inline
			}
		case oplog.KindSuccessfulUpdate, oplog.KindFailedUpdate:
			delete(pending, e.TargetVersion)
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		if data, still := pending[order[i]]; still {
			return order[i], data, true, nil
		}
	}
	return 0, nil, false, nil
}

// CompleteUpdate records the terminal outcome of a previously-begun update.
// succeeded=false is always safe to record: the worker remains on its prior
// component version and can continue running.
func (e *Engine) CompleteUpdate(ctx context.Context, targetVersion uint64, succeeded bool, details string) (oplog.Index, error) {
	kind := oplog.KindFailedUpdate
	if succeeded {
		kind = oplog.KindSuccessfulUpdate
	}
	return e.Append(ctx, oplog.Entry{
		Kind:          kind,
		TargetVersion: targetVersion,
		UpdateDetails: details,
	})
}
