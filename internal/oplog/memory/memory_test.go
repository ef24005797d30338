package memory

import (
	"context"
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndRead(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	require.NoError(t, s.Append(ctx, w, oplog.Entry{Index: 1, Kind: oplog.KindCreate}))
	require.NoError(t, s.Append(ctx, w, oplog.Entry{Index: 2, Kind: oplog.KindExportedFunctionInvoked}))

	last, err := s.LastIndex(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, oplog.Index(2), last)

	entries, err := s.Read(ctx, w, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, oplog.KindCreate, entries[0].Kind)
}

func TestStore_AppendOutOfOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	err := s.Append(ctx, w, oplog.Entry{Index: 2, Kind: oplog.KindCreate})
	assert.Error(t, err)
}

func TestStore_Payloads(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	require.NoError(t, s.PutPayload(ctx, w, "hash1", []byte("payload bytes")))
	data, err := s.GetPayload(ctx, w, "hash1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload bytes"), data)

	_, err = s.GetPayload(ctx, w, "missing")
	assert.Error(t, err)
}

func TestStore_Archive(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}

	require.NoError(t, s.Archive(ctx, w, 10))
	assert.Equal(t, oplog.Index(10), s.ArchivedUpTo(w))
}

func TestStore_IsolatedByWorker(t *testing.T) {
	s := New()
	ctx := context.Background()
	w1 := oplog.WorkerID{ComponentID: "c1", WorkerName: "w1"}
	w2 := oplog.WorkerID{ComponentID: "c1", WorkerName: "w2"}

	require.NoError(t, s.Append(ctx, w1, oplog.Entry{Index: 1, Kind: oplog.KindCreate}))

	last, err := s.LastIndex(ctx, w2)
	require.NoError(t, err)
	assert.Equal(t, oplog.Index(0), last)
}
