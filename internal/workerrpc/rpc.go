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

// Package workerrpc lets one worker invoke an exported function on another
// worker: a typed call, at-least-once delivered, made idempotent by an
// auto-derived key, and journaled so that replay reproduces its result
// without re-invoking the target. It is grounded on the correlation-ID
// message envelope and protocol-version handshake in internal/rpc,
// generalized from "CLI talks to daemon" to "worker talks to worker":
// Message.Method becomes the target's fully-qualified function name and
// Message.Params/Result become WitValue payloads carried through
// pkg/value, exactly as internal/rpc carries arbitrary JSON params/result.
package workerrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/hostfunc"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// ProtocolVersion names the worker-to-worker call protocol version. Nothing
// in this package sends, negotiates or checks it.
const ProtocolVersion = "1.0"

// ErrorKind enumerates the ways a worker-to-worker call can fail without
// ever reaching (or ever returning from) the target worker's code.
type ErrorKind string

const (
	ErrorProtocolError      ErrorKind = "ProtocolError"
	ErrorDenied             ErrorKind = "Denied"
	ErrorNotFound           ErrorKind = "NotFound"
	ErrorRemoteInternalError ErrorKind = "RemoteInternalError"
)

// RpcError reports why an invocation did not produce a target-worker
// result, distinct from a value-level error the target function itself
// returns (that travels back as an Ok/Err value.Value, not an RpcError).
type RpcError struct {
	Kind    ErrorKind
	Details string
}

func (e *RpcError) Error() string {
	if e.Details == "" {
		return "workerrpc: " + string(e.Kind)
	}
	return "workerrpc: " + string(e.Kind) + ": " + e.Details
}

// Target names the worker and fully-qualified export a call addresses.
type Target struct {
	Worker   oplog.WorkerID
	Function string
}

// Invoker performs the real cross-worker call once the replay engine has
// switched to Live; resolving Target to a reachable worker (in-process,
// same node, or another node in the fleet) is its responsibility, not
// this package's. Static (compile-time-linked) and dynamic
// (runtime-resolved) worker dependencies both satisfy this interface; they
// differ only in how they come to know Target.Worker, not in the oplog
// shape their calls produce.
type Invoker interface {
	Invoke(ctx context.Context, target Target, idempotencyKey string, args value.Value) (value.Value, *RpcError)
}

// Client drives worker-to-worker calls through a worker's replay.Engine,
// the same durability boundary every other host function crosses: the
// call is WriteRemote, so replay never re-invokes the target and instead
// returns the journaled result.
type Client struct {
	engine *replay.Engine
	invoke Invoker
}

// New creates a Client that dispatches through engine and, once live,
// performs the real call via invoke.
func New(engine *replay.Engine, invoke Invoker) *Client {
	return &Client{engine: engine, invoke: invoke}
}

// Call invokes target.Function on target.Worker with args, propagating an
// idempotency key derived from callerInvocationKey and the call site's
// oplog index so the at-least-once delivery the target observes is safe to
// deduplicate, exactly as an outbound HTTP call's idempotency-key header is
// derived in internal/hostfunc. Both the call's outcome and the idempotency
// key used to reach it are journaled as a SerializableInvokeResult, so
// replay reconstructs the result (or re-raises the same RpcError) without
// ever re-invoking target.
func (c *Client) Call(ctx context.Context, callerInvocationKey string, target Target, args value.Value) (value.Value, error) {
	callSiteIndex := c.engine.CallSiteIndex()

	payload, err := c.engine.Dispatch(ctx, c.buildHostCall(target, args, callerInvocationKey, callSiteIndex))
	if err != nil {
		return value.Value{}, err
	}

	var recorded SerializableInvokeResult
	if err := json.Unmarshal(payload.Inline, &recorded); err != nil {
		return value.Value{}, fmt.Errorf("decoding journaled invoke result: %w", err)
	}
	if recorded.Error != nil {
		return value.Value{}, recorded.Error
	}
	return value.DecodeJSON(recorded.ResultJSON)
}

// buildHostCall wraps the real cross-worker invocation as a replay.HostCall:
// WriteRemote so replay never re-invokes the target, with its idempotency
// key derived the same way every other outbound durable call derives one.
func (c *Client) buildHostCall(target Target, args value.Value, callerKey string, callSiteIndex oplog.Index) replay.HostCall {
	return replay.HostCall{
		FunctionName: target.Function,
		WrappedType:  oplog.WriteRemote,
		Invoke: func(ctx context.Context) (*oplog.Payload, error) {
			idemKey := hostfunc.DeriveIdempotencyKey(callerKey, callSiteIndex)

			recorded := SerializableInvokeResult{
				IdempotencyKey: idemKey,
				Worker:         target.Worker,
				Function:       target.Function,
			}

			result, rpcErr := c.invoke.Invoke(ctx, target, idemKey, args)
			if rpcErr != nil {
				recorded.Error = rpcErr
			} else {
				encoded, err := value.EncodeJSON(result)
				if err != nil {
					return nil, err
				}
				recorded.ResultJSON = encoded
			}

			inline, err := json.Marshal(recorded)
			if err != nil {
				return nil, fmt.Errorf("encoding invoke result for journal: %w", err)
			}
			return &oplog.Payload{Inline: inline}, nil
		},
	}
}

// SerializableInvokeResult is the journaled record of one worker-to-worker
// call. The request itself is already captured by the enclosing
// ImportedFunctionInvoked entry's FunctionName, so this carries the
// idempotency key the callee deduplicated on plus the outcome - exactly one
// of ResultJSON or Error - needed to replay the call without reaching the
// target again.
type SerializableInvokeResult struct {
	IdempotencyKey string
	Worker         oplog.WorkerID
	Function       string
	ResultJSON     []byte    `json:",omitempty"`
	Error          *RpcError `json:",omitempty"`
}
