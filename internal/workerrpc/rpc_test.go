package workerrpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/oplog/memory"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/pkg/value"
)

type fakeInvoker struct {
	result value.Value
	err    *RpcError
	calls  int
	keys   []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, target Target, idempotencyKey string, args value.Value) (value.Value, *RpcError) {
	f.calls++
	f.keys = append(f.keys, idempotencyKey)
	if f.err != nil {
		return value.Value{}, f.err
	}
	return f.result, nil
}

func newEngine(t *testing.T, worker oplog.WorkerID) (*replay.Engine, oplog.Store) {
	t.Helper()
	store := memory.New()
	engine, err := replay.NewEngine(context.Background(), store, worker)
	require.NoError(t, err)
	return engine, store
}

func TestCallInvokesAndReturnsResult(t *testing.T) {
	worker := oplog.WorkerID{ComponentID: "comp-a", WorkerName: "caller"}
	engine, _ := newEngine(t, worker)

	invoker := &fakeInvoker{result: value.U(value.KindU32, 42)}
	client := New(engine, invoker)

	target := Target{Worker: oplog.WorkerID{ComponentID: "comp-b", WorkerName: "callee"}, Function: "add"}
	result, err := client.Call(context.Background(), "invocation-1", target, value.U(value.KindU32, 1))
	require.NoError(t, err)
	assert.Equal(t, value.U(value.KindU32, 42), result)
	assert.Equal(t, 1, invoker.calls)
	assert.NotEmpty(t, invoker.keys[0])
}

func TestCallPropagatesRpcError(t *testing.T) {
	worker := oplog.WorkerID{ComponentID: "comp-a", WorkerName: "caller"}
	engine, _ := newEngine(t, worker)

	invoker := &fakeInvoker{err: &RpcError{Kind: ErrorNotFound, Details: "no such worker"}}
	client := New(engine, invoker)

	target := Target{Worker: oplog.WorkerID{ComponentID: "comp-b", WorkerName: "callee"}, Function: "add"}
	_, err := client.Call(context.Background(), "invocation-1", target, value.U(value.KindU32, 1))
	require.Error(t, err)

	var rpcErr *RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrorNotFound, rpcErr.Kind)
}

func TestCallReplayReturnsJournaledResult(t *testing.T) {
	worker := oplog.WorkerID{ComponentID: "comp-a", WorkerName: "caller"}
	engine, store := newEngine(t, worker)

	invoker := &fakeInvoker{result: value.U(value.KindU32, 7)}
	client := New(engine, invoker)
	target := Target{Worker: oplog.WorkerID{ComponentID: "comp-b", WorkerName: "callee"}, Function: "double"}

	_, err := client.Call(context.Background(), "invocation-1", target, value.U(value.KindU32, 3))
	require.NoError(t, err)
	firstKey := invoker.keys[0]

	// A fresh engine over the same store replays the recorded entry instead
	// of calling the invoker again.
	replayEngine, err := replay.NewEngine(context.Background(), store, worker)
	require.NoError(t, err)
	replayInvoker := &fakeInvoker{result: value.U(value.KindU32, 999)}
	replayClient := New(replayEngine, replayInvoker)

	result, err := replayClient.Call(context.Background(), "invocation-1", target, value.U(value.KindU32, 3))
	require.NoError(t, err)
	assert.Equal(t, value.U(value.KindU32, 7), result, "replay must return the journaled result, not re-invoke")
	assert.Equal(t, 0, replayInvoker.calls)
	assert.NotEqual(t, "", firstKey)
}

func TestRpcErrorMessage(t *testing.T) {
	err := &RpcError{Kind: ErrorDenied}
	assert.Equal(t, "workerrpc: Denied", err.Error())

	err = &RpcError{Kind: ErrorProtocolError, Details: "version mismatch"}
	assert.Equal(t, "workerrpc: ProtocolError: version mismatch", err.Error())
}
