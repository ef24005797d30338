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

package oplog_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/oplog/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_AppendAssignsDenseIndices(t *testing.T) {
	ctx := context.Background()
	h := oplog.NewHandle(memory.New(), oplog.WorkerID{ComponentID: "c", WorkerName: "w"}, 0)

	first, err := h.Append(ctx, oplog.Entry{Kind: oplog.KindCreate})
	require.NoError(t, err)
	second, err := h.Append(ctx, oplog.Entry{Kind: oplog.KindSuspend})
	require.NoError(t, err)

	assert.Equal(t, oplog.Index(1), first)
	assert.Equal(t, oplog.Index(2), second)

	current, err := h.CurrentIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, current)

	entries, err := h.Read(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, oplog.KindCreate, entries[0].Kind)
}

func TestHandle_SmallPayloadStaysInline(t *testing.T) {
	ctx := context.Background()
	h := oplog.NewHandle(memory.New(), oplog.WorkerID{ComponentID: "c", WorkerName: "w"}, 64)

	p, err := h.AddPayload(ctx, []byte("small"))
	require.NoError(t, err)
	assert.True(t, p.IsInline())

	data, err := h.ReadPayload(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []byte("small"), data)
}

func TestHandle_LargePayloadExternalizesAndVerifiesHash(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := oplog.WorkerID{ComponentID: "c", WorkerName: "w"}
	h := oplog.NewHandle(store, w, 8)

	big := bytes.Repeat([]byte("x"), 100)
	p, err := h.AddPayload(ctx, big)
	require.NoError(t, err)
	require.False(t, p.IsInline())

	data, err := h.ReadPayload(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, big, data)

	// Corrupt the stored bytes: the hash check must catch it.
	require.NoError(t, store.PutPayload(ctx, w, p.PayloadID, []byte("tampered")))
	_, err = h.ReadPayload(ctx, p)
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestHandle_DropPrefixKeepsTailReadable(t *testing.T) {
	ctx := context.Background()
	h := oplog.NewHandle(memory.New(), oplog.WorkerID{ComponentID: "c", WorkerName: "w"}, 0)

	for i := 0; i < 5; i++ {
		_, err := h.Append(ctx, oplog.Entry{Kind: oplog.KindGrowMemory})
		require.NoError(t, err)
	}

	require.NoError(t, h.DropPrefixUpTo(ctx, 3))

	entries, err := h.Read(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, oplog.Index(4), entries[0].Index)

	// Appends continue dense after the drop.
	idx, err := h.Append(ctx, oplog.Entry{Kind: oplog.KindGrowMemory})
	require.NoError(t, err)
	assert.Equal(t, oplog.Index(6), idx)
}

func TestHandle_CommitIsImmediateForSynchronousTiers(t *testing.T) {
	h := oplog.NewHandle(memory.New(), oplog.WorkerID{ComponentID: "c", WorkerName: "w"}, 0)
	assert.NoError(t, h.Commit(context.Background()))
}
