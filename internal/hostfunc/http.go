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

	"github.com/golemcloud/worker-executor/internal/hostfunc/transport"
	"github.com/golemcloud/worker-executor/internal/tracing"
	"github.com/golemcloud/worker-executor/internal/oplog"
	"github.com/golemcloud/worker-executor/internal/replay"
	"github.com/golemcloud/worker-executor/pkg/golemerr"
	"github.com/golemcloud/worker-executor/pkg/value"
)

// HTTPRequest is the outgoing-handler argument a guest passes: method, URL,
// headers, and an optional body.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// SerializableResponse is what gets journaled for an outgoing HTTP call:
// either a received response, or the fact that it failed: the
// headers-received vs error-code vs internal-error distinction.
type SerializableResponse struct {
	StatusCode int                 `json:",omitempty"`
	Headers    map[string][]string `json:",omitempty"`
	Body       []byte              `json:",omitempty"`
	Error      string              `json:",omitempty"`
}

// HTTPClient wraps wasi:http/outgoing-handler.handle over a
// transport.Transport, like workerrpc.Client bypasses the generic
// hostfunc.Function interface to reach the replay engine directly: the
// outbound idempotency-key header needs the call site's own oplog index,
// which only the engine knows before the call is dispatched.
type HTTPClient struct {
	engine    *replay.Engine
	transport transport.Transport
}

// NewHTTPClient creates an HTTPClient dispatching through engine and
// executing real requests via t once live.
func NewHTTPClient(engine *replay.Engine, t transport.Transport) *HTTPClient {
	return &HTTPClient{engine: engine, transport: t}
}

// methodIsMutating reports whether method carries externally-visible side
// effects, the ReadRemote/WriteRemote distinction: GET/HEAD/OPTIONS
// observe state, everything else changes it on the remote end.
func methodIsMutating(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return false
	default:
		return true
	}
}

// Do issues req, deriving and attaching an idempotency-key header from
// invocationKey and the call site's oplog index so a retried delivery after
// a crash carries the identical key the first attempt used, journaling the
// outcome as a SerializableResponse so replay never re-issues the request.
func (c *HTTPClient) Do(ctx context.Context, invocationKey string, req HTTPRequest) (SerializableResponse, error) {
	wrapped := oplog.ReadRemote
	if methodIsMutating(req.Method) {
		wrapped = oplog.WriteRemote
	}

	callSiteIndex := c.engine.CallSiteIndex()

	payload, err := c.engine.Dispatch(ctx, replay.HostCall{
		FunctionName: "wasi:http/outgoing-handler.handle",
		WrappedType:  wrapped,
		Invoke: func(ctx context.Context) (*oplog.Payload, error) {
			idemKey := DeriveIdempotencyKey(invocationKey, callSiteIndex)

			headers := make(map[string]string, len(req.Headers)+2)
			for k, v := range req.Headers {
				headers[k] = v
			}
			headers["idempotency-key"] = idemKey
			// Live path only: a replayed call emits no request, and the
			// journaled response never contains these request headers.
			tracing.InjectHeaders(ctx, headers)

			resp, execErr := c.transport.Execute(ctx, &transport.Request{
				Method:  req.Method,
				URL:     req.URL,
				Headers: headers,
				Body:    req.Body,
			})

			var recorded SerializableResponse
			if execErr != nil {
				recorded.Error = execErr.Error()
			} else {
				recorded.StatusCode = resp.StatusCode
				recorded.Headers = resp.Headers
				recorded.Body = resp.Body
			}

			inline, marshalErr := json.Marshal(recorded)
			if marshalErr != nil {
				return nil, fmt.Errorf("encoding http response for journal: %w", marshalErr)
			}
			return &oplog.Payload{Inline: inline}, nil
		},
	})
	if err != nil {
		return SerializableResponse{}, err
	}

	var recorded SerializableResponse
	if err := json.Unmarshal(payload.Inline, &recorded); err != nil {
		return SerializableResponse{}, fmt.Errorf("decoding journaled http response: %w", err)
	}
	return recorded, nil
}

// DoValue decodes args as a wasi:http outgoing-handler request record,
// issues it via Do, and re-encodes the outcome as a value.Value response
// record - the entry point callers use when driving HTTPClient through the
// generic value.Value boundary instead of calling Do directly with a typed
// HTTPRequest.
func (c *HTTPClient) DoValue(ctx context.Context, invocationKey string, args value.Value) (value.Value, error) {
	req, err := argsToRequest(args)
	if err != nil {
		return value.Value{}, err
	}
	resp, err := c.Do(ctx, invocationKey, req)
	if err != nil {
		return value.Value{}, err
	}
	if resp.Error != "" {
		msg := value.Str(resp.Error)
		return value.ResultErr(&msg), nil
	}
	headerItems := make([]value.Value, 0, len(resp.Headers))
	for k, vs := range resp.Headers {
		for _, v := range vs {
			headerItems = append(headerItems, value.TupleVal(value.Str(k), value.Str(v)))
		}
	}
	ok := value.RecordVal(map[string]value.Value{
		"status-code": value.U(value.KindU32, uint64(resp.StatusCode)),
		"headers":     value.ListVal(headerItems...),
		"body":        listFromBytes(resp.Body),
	})
	return value.ResultOk(&ok), nil
}

// argsToRequest decodes the wasi:http outgoing-handler argument record into
// an HTTPRequest, used by callers that drive HTTPClient through the generic
// value.Value boundary (a durable host function registered by name) rather
// than calling Do directly.
func argsToRequest(args value.Value) (HTTPRequest, error) {
	if args.Kind != value.KindRecord {
		return HTTPRequest{}, golemerr.ParamTypeMismatch("expected an http request record")
	}
	req := HTTPRequest{Headers: map[string]string{}}
	if m, ok := args.Flds["method"]; ok {
		req.Method = m.String
	}
	if u, ok := args.Flds["url"]; ok {
		req.URL = u.String
	}
	if b, ok := args.Flds["body"]; ok {
		data, err := bytesFromList(b)
		if err != nil {
			return HTTPRequest{}, err
		}
		req.Body = data
	}
	if h, ok := args.Flds["headers"]; ok && h.Kind == value.KindList {
		for _, kv := range h.List {
			if kv.Kind == value.KindTuple && len(kv.List) == 2 {
				req.Headers[kv.List[0].String] = kv.List[1].String
			}
		}
	}
	return req, nil
}
