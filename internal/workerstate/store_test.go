package workerstate

import (
	"context"
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetDefaultsToEmpty(t *testing.T) {
	s := New(nil)
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r := s.Get(w)
	assert.Equal(t, StatusIdle, r.Status)
	assert.Equal(t, oplog.Index(0), r.OplogIdx)
}

func TestStore_Apply_MonotoneCAS(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r1 := Empty()
	r1.OplogIdx = 1
	r1.Status = StatusIdle
	require.NoError(t, s.Apply(ctx, w, r1))

	r2 := r1.clone()
	r2.OplogIdx = 2
	r2.Status = StatusRunning
	require.NoError(t, s.Apply(ctx, w, r2))

	assert.Equal(t, StatusRunning, s.Get(w).Status)
}

func TestStore_Apply_RejectsStaleWrite(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r1 := Empty()
	r1.OplogIdx = 5
	require.NoError(t, s.Apply(ctx, w, r1))

	stale := Empty()
	stale.OplogIdx = 3
	err := s.Apply(ctx, w, stale)
	assert.Error(t, err)

	assert.Equal(t, oplog.Index(5), s.Get(w).OplogIdx)
}

func TestStore_Apply_RejectsIllegalTransition(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r1 := Empty()
	r1.OplogIdx = 1
	r1.Status = StatusFailed
	require.NoError(t, s.Apply(ctx, w, r1))

	r2 := r1.clone()
	r2.OplogIdx = 2
	r2.Status = StatusIdle
	err := s.Apply(ctx, w, r2)
	assert.Error(t, err)
}

func TestStore_SnapshotIsImmutable(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r1 := Empty()
	r1.OplogIdx = 1
	r1.PendingInvocations = []string{"key-a"}
	require.NoError(t, s.Apply(ctx, w, r1))

	snap := s.Get(w)
	snap.PendingInvocations[0] = "mutated"

	assert.Equal(t, "key-a", s.Get(w).PendingInvocations[0])
}

type fakePersister struct {
	calls int
}

func (f *fakePersister) PutStatus(ctx context.Context, worker oplog.WorkerID, record Record) error {
	f.calls++
	return nil
}

func TestStore_BestEffortPersistence(t *testing.T) {
	p := &fakePersister{}
	s := New(p)
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	r1 := Empty()
	r1.OplogIdx = 1
	require.NoError(t, s.Apply(ctx, w, r1))

	assert.Equal(t, 1, p.calls)
}
