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

// End-to-end restart scenarios: each test runs a worker's host calls
// against a shared oplog, kills the in-process state (engine, sandbox),
// and verifies recovery - rebuild plus replay - preserves what the worker
// observed before the crash.

package hostfunc

import (
	"context"
	"errors"
	"testing"

	"github.com/golemcloud/worker-executor/internal/hostfunc/fs"
	"github.com/golemcloud/worker-executor/internal/hostfunc/transport"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/oplog/memory"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Write a file, restart the executor, read it back: the sandbox is
// rebuilt from the journal, so the read - a new invocation, live - sees
// the pre-crash write.
func TestScenario_WriteFileSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	w := testWorker()
	store := memory.New()

	// First process lifetime.
	engine1, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	fs1 := NewFilesystem(fs.New(), func() int64 { return 100 })

	result, err := Dispatch(ctx, engine1, fs1.WriteFile(), value.TupleVal(
		value.Str("/a.txt"),
		listFromBytes([]byte("hello world")),
	))
	require.NoError(t, err)
	require.False(t, result.IsErr)

	// Restart: fresh engine, fresh (empty) sandbox, rebuild, then replay
	// catches up and the new read runs live against the rebuilt tree.
	sandbox2 := fs.New()
	fs2 := NewFilesystem(sandbox2, func() int64 { return 200 })
	require.NoError(t, RebuildSandbox(ctx, store, w, fs2))

	engine2, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	require.True(t, engine2.IsReplaying())

	// The worker's code path replays its write call first.
	replayed, err := Dispatch(ctx, engine2, fs2.WriteFile(), value.TupleVal(
		value.Str("/a.txt"),
		listFromBytes([]byte("hello world")),
	))
	require.NoError(t, err)
	require.False(t, replayed.IsErr)

	// Then the new invocation reads, live.
	read, err := Dispatch(ctx, engine2, fs2.ReadFile(), value.Str("/a.txt"))
	require.NoError(t, err)
	require.Equal(t, replay.Live, engine2.Mode())
	require.False(t, read.IsErr)
	data, err := bytesFromList(*read.Ok)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

// List, create directories and a file, list again, restart, replay: the
// replayed listings are identical to the first run's, byte for byte.
func TestScenario_DirectoryListingStableAcrossReplay(t *testing.T) {
	ctx := context.Background()
	w := testWorker()
	store := memory.New()

	routine := func(engine *replay.Engine, f *Filesystem) ([]value.Value, error) {
		var listings []value.Value

		rootListing, err := Dispatch(ctx, engine, f.ListDirectory(), value.Str("/"))
		if err != nil {
			return nil, err
		}
		listings = append(listings, rootListing)

		for _, dir := range []string{"/test", "/test/dir1", "/test/dir2"} {
			if _, err := Dispatch(ctx, engine, f.CreateDirectory(), value.Str(dir)); err != nil {
				return nil, err
			}
		}
		if _, err := Dispatch(ctx, engine, f.WriteFile(), value.TupleVal(
			value.Str("/test/hello.txt"),
			listFromBytes([]byte("hello")),
		)); err != nil {
			return nil, err
		}

		testListing, err := Dispatch(ctx, engine, f.ListDirectory(), value.Str("/test"))
		if err != nil {
			return nil, err
		}
		listings = append(listings, testListing)
		return listings, nil
	}

	engine1, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	first, err := routine(engine1, NewFilesystem(fs.New(), func() int64 { return 100 }))
	require.NoError(t, err)

	// Restart and re-run the same routine: every call replays.
	fs2 := NewFilesystem(fs.New(), func() int64 { return 999 })
	require.NoError(t, RebuildSandbox(ctx, store, w, fs2))

	engine2, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	second, err := routine(engine2, fs2)
	require.NoError(t, err)

	assert.Equal(t, first, second, "replayed listings must be byte-equal")
	assert.Equal(t, replay.Replaying, engine2.Mode(), "the whole routine was recorded")
}

// crashingStore drops one append on the floor and reports failure,
// emulating process death between executing a side effect and journaling
// it: the entry never becomes part of the oplog.
type crashingStore struct {
	oplog.Store
	crashOnFunction string
	crashed         bool
}

func (s *crashingStore) Append(ctx context.Context, worker oplog.WorkerID, entry oplog.Entry) error {
	if !s.crashed && entry.FunctionName == s.crashOnFunction {
		s.crashed = true
		return errors.New("process died before append")
	}
	return s.Store.Append(ctx, worker, entry)
}

// An HTTP call interrupted before its journal append is retried after
// restart with the identical idempotency-key header: the key derives from
// the invocation key and the call-site oplog index, both of which are the
// same in the second process lifetime.
func TestScenario_InterruptedHTTPRetriesWithSameIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	w := testWorker()
	backing := memory.New()
	store := &crashingStore{Store: backing, crashOnFunction: "wasi:http/outgoing-handler.handle"}

	// First lifetime: a clock call is journaled, then the HTTP call's
	// side effect executes but the process dies before the append.
	engine1, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	_, err = Dispatch(ctx, engine1, NewWallClock(), value.Value{})
	require.NoError(t, err)

	ft1 := &fakeTransport{response: &transport.Response{StatusCode: 200, Body: []byte("slow body")}}
	_, err = NewHTTPClient(engine1, ft1).Do(ctx, "inv-1", HTTPRequest{Method: "POST", URL: "https://files.example.com/download"})
	require.Error(t, err, "the crash surfaces as an append failure")
	firstKey := ft1.lastReq.Headers["idempotency-key"]
	require.NotEmpty(t, firstKey)

	// Second lifetime: replay the clock, then retry the HTTP call live.
	engine2, err := replay.NewEngine(ctx, store, w)
	require.NoError(t, err)
	_, err = Dispatch(ctx, engine2, NewWallClock(), value.Value{})
	require.NoError(t, err)

	ft2 := &fakeTransport{response: &transport.Response{StatusCode: 200, Body: []byte("slow body")}}
	resp, err := NewHTTPClient(engine2, ft2).Do(ctx, "inv-1", HTTPRequest{Method: "POST", URL: "https://files.example.com/download"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, firstKey, ft2.lastReq.Headers["idempotency-key"],
		"the external server must observe the same key on the retried request")
}
