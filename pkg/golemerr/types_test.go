package golemerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"invalid request", InvalidRequest("missing field x"), "invalid request: missing field x"},
		{"worker not found", WorkerNotFound(), "worker not found"},
		{"interrupted", Interrupted(InterruptKindSuspend), "interrupted: Suspend"},
		{"unexpected oplog entry", UnexpectedOplogEntry("ExportedFunctionInvoked", "ImportedFunctionInvoked"),
			"unexpected oplog entry: expected ExportedFunctionInvoked, got ImportedFunctionInvoked"},
		{"invalid shard id", InvalidShardId(7, []uint32{1, 2, 3}), "invalid shard id 7, valid shards: [1 2 3]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := FailedToResumeWorker("snapshot restore failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_Is(t *testing.T) {
	err := WorkerNotFound()
	wrapped := fmt.Errorf("lookup failed: %w", err)

	assert.True(t, errors.Is(wrapped, &Error{Type: TypeWorkerNotFound}))
	assert.False(t, errors.Is(wrapped, &Error{Type: TypeWorkerAlreadyExists}))
}

func TestError_Retryable(t *testing.T) {
	assert.False(t, InvalidRequest("x").Retryable())
	assert.False(t, UnexpectedOplogEntry("a", "b").Retryable())
	assert.False(t, InvalidShardId(1, nil).Retryable())
	assert.False(t, OutOfMemory("grow past cap").Retryable())
	assert.False(t, StackOverflow("call stack exhausted").Retryable())
	assert.True(t, Runtime("trap").Retryable())
	assert.True(t, Unknown(errors.New("x")).Retryable())
}

func TestFromTrap(t *testing.T) {
	tests := []struct {
		trap string
		want Type
	}{
		{"wasm trap: out of memory", TypeOutOfMemory},
		{"memory limit exceeded during grow", TypeOutOfMemory},
		{"wasm trap: call stack exhausted", TypeStackOverflow},
		{"Stack Overflow in guest", TypeStackOverflow},
		{"wasm trap: unreachable executed", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.trap, func(t *testing.T) {
			err := FromTrap(tt.trap)
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.trap, err.Details)
		})
	}
}

func TestUnknown_NilCause(t *testing.T) {
	err := Unknown(nil)
	assert.Equal(t, TypeUnknown, err.Type)
	assert.Equal(t, "", err.Details)
}
