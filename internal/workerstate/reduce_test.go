package workerstate

import (
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/stretchr/testify/assert"
)

func TestReduce_ReplayDeterminism(t *testing.T) {
	entries := []oplog.Entry{
		{Index: 1, Kind: oplog.KindCreate, ComponentVersion: 1, InitialMemory: 1024},
		{Index: 2, Kind: oplog.KindExportedFunctionInvoked, IdempotencyKey: "req-1"},
		{Index: 3, Kind: oplog.KindExportedFunctionCompleted},
	}

	run := func() Record {
		r := Empty()
		for _, e := range entries {
			r = Reduce(r, e)
		}
		return r
	}

	first := run()
	second := run()

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.InvocationResults, second.InvocationResults)
	assert.Equal(t, first.ComponentVersion, second.ComponentVersion)
}

func TestReduce_CreateSetsIdle(t *testing.T) {
	r := Reduce(Empty(), oplog.Entry{Index: 1, Kind: oplog.KindCreate, ComponentVersion: 3})
	assert.Equal(t, StatusIdle, r.Status)
	assert.Equal(t, uint64(3), r.ComponentVersion)
}

func TestReduce_InvocationLifecycle(t *testing.T) {
	r := Empty()
	r = Reduce(r, oplog.Entry{Index: 1, Kind: oplog.KindCreate})
	r = Reduce(r, oplog.Entry{Index: 2, Kind: oplog.KindPendingWorkerInvocation, IdempotencyKey: "req-1"})
	assert.Contains(t, r.PendingInvocations, "req-1")

	r = Reduce(r, oplog.Entry{Index: 3, Kind: oplog.KindExportedFunctionInvoked, IdempotencyKey: "req-1"})
	assert.Equal(t, StatusRunning, r.Status)
	assert.NotContains(t, r.PendingInvocations, "req-1")

	r = Reduce(r, oplog.Entry{Index: 4, Kind: oplog.KindExportedFunctionCompleted})
	assert.Equal(t, StatusIdle, r.Status)
	assert.Equal(t, oplog.Index(4), r.InvocationResults["req-1"])
}

func TestReduce_RetryableErrorGoesToRetrying(t *testing.T) {
	r := Empty()
	serialized := golemerr.ToSerializable(golemerr.Runtime("trap"))
	r = Reduce(r, oplog.Entry{Index: 1, Kind: oplog.KindError, WorkerError: &serialized})
	assert.Equal(t, StatusRetrying, r.Status)
}

func TestReduce_MemoryAndStackTrapsGoToFailed(t *testing.T) {
	for _, build := range []func() *golemerr.Error{
		func() *golemerr.Error { return golemerr.OutOfMemory("grow past cap") },
		func() *golemerr.Error { return golemerr.FromTrap("wasm trap: call stack exhausted") },
	} {
		serialized := golemerr.ToSerializable(build())
		r := Reduce(Empty(), oplog.Entry{Index: 1, Kind: oplog.KindError, WorkerError: &serialized})
		assert.Equal(t, StatusFailed, r.Status)
	}
}

func TestReduce_NonRetryableErrorGoesToFailed(t *testing.T) {
	r := Empty()
	serialized := golemerr.ToSerializable(golemerr.InvalidRequest("bad args"))
	r = Reduce(r, oplog.Entry{Index: 1, Kind: oplog.KindError, WorkerError: &serialized})
	assert.Equal(t, StatusFailed, r.Status)
}

func TestReduce_GrowMemoryAccumulates(t *testing.T) {
	r := Empty()
	r = Reduce(r, oplog.Entry{Index: 1, Kind: oplog.KindGrowMemory, MemoryDelta: 1024})
	r = Reduce(r, oplog.Entry{Index: 2, Kind: oplog.KindGrowMemory, MemoryDelta: 2048})
	assert.Equal(t, uint64(3072), r.TotalLinearMemorySize)
}

func TestReduce_ResourceLifecycle(t *testing.T) {
	r := Empty()
	r = Reduce(r, oplog.Entry{Index: 1, Kind: oplog.KindCreateResource, ResourceID: 7, IndexedKey: "k"})
	_, ok := r.OwnedResources[7]
	assert.True(t, ok)

	r = Reduce(r, oplog.Entry{Index: 2, Kind: oplog.KindDropResource, ResourceID: 7})
	_, ok = r.OwnedResources[7]
	assert.False(t, ok)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusIdle, StatusRunning))
	assert.True(t, CanTransition(StatusRunning, StatusRetrying))
	assert.True(t, CanTransition(StatusRetrying, StatusFailed))
	assert.False(t, CanTransition(StatusFailed, StatusRunning))
	assert.True(t, CanTransition(StatusFailed, StatusInterrupted))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusFailed))
	assert.True(t, IsTerminal(StatusExited))
	assert.False(t, IsTerminal(StatusIdle))
}
