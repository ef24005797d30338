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
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/oplog/memory"
	"github.com/golemcloud/worker-executor/internal/workerstate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpgrade_SuccessfulUpdateIsReflectedInWorkerState(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := testWorker()
	e, err := NewEngine(ctx, store, w)
	require.NoError(t, err)

	_, err = e.BeginUpdate(ctx, 2, UpdateAutomatic, "replaying against v2")
	require.NoError(t, err)
	_, err = e.CompleteUpdate(ctx, 2, true, "replay matched recorded host calls")
	require.NoError(t, err)

	entries, err := store.Read(ctx, w, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	record := workerstate.Empty()
	for _, entry := range entries {
		record = workerstate.Reduce(record, entry)
	}
	assert.Contains(t, record.SuccessfulUpdates, uint64(2))
	assert.Equal(t, uint64(2), record.ComponentVersion)
	assert.NotContains(t, record.PendingUpdates, uint64(2))
}

func TestUpgrade_FailedUpdateKeepsPriorVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := testWorker()
	e, err := NewEngine(ctx, store, w)
	require.NoError(t, err)

	_, err = e.Append(ctx, oplog.Entry{Kind: oplog.KindCreate, ComponentVersion: 1})
	require.NoError(t, err)
	_, err = e.BeginUpdate(ctx, 2, UpdateSnapshotBased, "snapshot restore")
	require.NoError(t, err)
	_, err = e.CompleteUpdate(ctx, 2, false, "save-state export missing in target version")
	require.NoError(t, err)

	entries, err := store.Read(ctx, w, 1, 3)
	require.NoError(t, err)

	record := workerstate.Empty()
	for _, entry := range entries {
		record = workerstate.Reduce(record, entry)
	}
	assert.Equal(t, uint64(1), record.ComponentVersion)
	assert.Contains(t, record.FailedUpdates, uint64(2))
	assert.NotContains(t, record.PendingUpdates, uint64(2))
}

func TestSnapshotUpdate_PendingSnapshotIsRecoverable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := testWorker()

	e, err := NewEngine(ctx, store, w)
	require.NoError(t, err)
	_, err = e.BeginSnapshotUpdate(ctx, 3, []byte("saved-state"))
	require.NoError(t, err)

	// The process restarts before the new version loads the snapshot.
	version, snapshot, ok, err := PendingSnapshot(ctx, store, w)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, []byte("saved-state"), snapshot)

	// Once the load succeeds and the outcome is recorded, nothing is
	// pending anymore.
	e2, err := NewEngine(ctx, store, w)
	require.NoError(t, err)
	_, err = e2.Append(ctx, oplog.Entry{Kind: oplog.KindPendingUpdate}) // replayed
	require.NoError(t, err)
	_, err = e2.CompleteUpdate(ctx, 3, true, "loaded from snapshot")
	require.NoError(t, err)

	_, _, ok, err = PendingSnapshot(ctx, store, w)
	require.NoError(t, err)
	assert.False(t, ok)
}
