package invocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golemcloud/worker-executor/internal/oplog"
)

type fakeLookup struct {
	results map[string]oplog.Index
}

func (f fakeLookup) ResultFor(key string) (oplog.Index, bool) {
	idx, ok := f.results[key]
	return idx, ok
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})

	_, dup, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "a", Function: "f1", Source: SourceExternal})
	require.NoError(t, err)
	assert.False(t, dup)

	_, dup, err = q.Enqueue(context.Background(), Invocation{IdempotencyKey: "b", Function: "f2", Source: SourceExternal})
	require.NoError(t, err)
	assert.False(t, dup)

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.IdempotencyKey)

	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", second.IdempotencyKey)
}

func TestEnqueueAlreadyCompletedReturnsExistingIndex(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{"done": 7}})

	idx, dup, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "done", Function: "f1"})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, oplog.Index(7), idx)
	assert.Equal(t, 0, q.Len(), "a completed invocation must not be admitted to the queue")
}

func TestEnqueueDuplicateInFlightIsDropped(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})

	_, dup, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "x", Function: "f1"})
	require.NoError(t, err)
	assert.False(t, dup)

	_, dup, err = q.Enqueue(context.Background(), Invocation{IdempotencyKey: "x", Function: "f1"})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 1, q.Len(), "a second delivery of an in-flight key must not be admitted twice")
}

func TestReenqueueAfterCompletionReturnsRecordedResult(t *testing.T) {
	lookup := fakeLookup{results: map[string]oplog.Index{}}
	q := New(lookup)

	_, _, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "x", Function: "f1"})
	require.NoError(t, err)
	_, err = q.Dequeue(context.Background())
	require.NoError(t, err)

	q.Release("x")
	lookup.results["x"] = 3

	idx, dup, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "x", Function: "f1"})
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, oplog.Index(3), idx)
}

func TestRecoverPreservesOplogOrder(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})

	entries := []oplog.Entry{
		{Index: 1, Kind: oplog.KindCreate},
		{Index: 2, Kind: oplog.KindPendingWorkerInvocation, IdempotencyKey: "k1", FunctionName: "f1"},
		{Index: 3, Kind: oplog.KindPendingWorkerInvocation, IdempotencyKey: "k2", FunctionName: "f2"},
	}
	require.NoError(t, q.Recover(context.Background(), entries))

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k1", first.IdempotencyKey)
	assert.Equal(t, SourceRecovered, first.Source)

	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k2", second.IdempotencyKey)
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})

	done := make(chan Invocation, 1)
	go func() {
		inv, err := q.Dequeue(context.Background())
		if err == nil {
			done <- inv
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_, _, err := q.Enqueue(context.Background(), Invocation{IdempotencyKey: "late", Function: "f"})
	require.NoError(t, err)

	select {
	case inv := <-done:
		assert.Equal(t, "late", inv.IdempotencyKey)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dequeue to unblock")
	}
}

func TestDequeueAfterCloseReturnsErrQueueClosed(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})
	require.NoError(t, q.Close())

	_, err := q.Dequeue(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, _, err = q.Enqueue(context.Background(), Invocation{IdempotencyKey: "x"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDequeueContextCancelled(t *testing.T) {
	q := New(fakeLookup{results: map[string]oplog.Index{}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
