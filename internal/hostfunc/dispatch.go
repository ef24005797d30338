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

package hostfunc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// journaledCall is the payload shape Dispatch records for a host call: the
// result the guest observed plus the arguments that produced it. Replay
// only needs the result; the arguments are what lets recovery re-apply
// WriteLocal mutations to a rebuilt sandbox (see RebuildSandbox).
type journaledCall struct {
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result"`
}

// Dispatch bridges a Function to a worker's replay.Engine the same way
// workerrpc.Client bridges an RPC call: it encodes fn's args and result as
// an oplog payload when live, and lets the engine transparently hand back
// the recorded payload during replay instead of invoking fn at all.
func Dispatch(ctx context.Context, engine *replay.Engine, fn Function, args value.Value) (value.Value, error) {
	payload, err := engine.Dispatch(ctx, replay.HostCall{
		FunctionName: fn.Name(),
		WrappedType:  fn.WrappedType(),
		Invoke: func(ctx context.Context) (*oplog.Payload, error) {
			result, err := fn.Invoke(ctx, args)
			if err != nil {
				return nil, err
			}
			encodedResult, err := value.EncodeJSON(result)
			if err != nil {
				return nil, err
			}
			call := journaledCall{Result: encodedResult}
			if args.Kind != "" {
				encodedArgs, err := value.EncodeJSON(args)
				if err != nil {
					return nil, err
				}
				call.Args = encodedArgs
			}
			encoded, err := json.Marshal(call)
			if err != nil {
				return nil, fmt.Errorf("encoding host call for journal: %w", err)
			}
			return &oplog.Payload{Inline: encoded}, nil
		},
	})
	if err != nil {
		return value.Value{}, err
	}
	var call journaledCall
	if err := json.Unmarshal(payload.Inline, &call); err != nil {
		return value.Value{}, fmt.Errorf("decoding journaled host call: %w", err)
	}
	return value.DecodeJSON(call.Result)
}
