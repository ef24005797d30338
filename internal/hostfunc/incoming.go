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
	"fmt"
	"sort"

	"github.com/golemcloud/worker-executor/pkg/value"
)

// IncomingRequest is the golem:http/incoming-handler request shape the
// gateway dispatches to workers: it travels as the payload of the
// invocation's ExportedFunctionInvoked entry, so its value encoding is part
// of the stable ABI and changes to it must stay decodable by old journals.
type IncomingRequest struct {
	Method        string
	Scheme        string
	Authority     string
	PathWithQuery string
	Headers       map[string]string
	Body          []byte            // nil when the request has no body
	Trailers      map[string]string // nil when the body carries no trailers
}

// IncomingRequestType is the AnalysedType of the incoming-http-request
// record as declared in WIT.
func IncomingRequestType() value.AnalysedType {
	headerList := value.AnalysedType{
		Kind: value.KindList,
		Elem: &value.AnalysedType{
			Kind:  value.KindTuple,
			Items: []value.AnalysedType{{Kind: value.KindString}, {Kind: value.KindString}},
		},
	}
	bodyBytes := value.AnalysedType{Kind: value.KindList, Elem: &value.AnalysedType{Kind: value.KindU8}}
	trailerType := headerList

	return value.AnalysedType{
		Kind: value.KindRecord,
		Fields: map[string]value.AnalysedType{
			"method":          {Kind: value.KindString},
			"scheme":          {Kind: value.KindString},
			"authority":       {Kind: value.KindString},
			"path-with-query": {Kind: value.KindString},
			"headers":         headerList,
			"body":            {Kind: value.KindOption, Elem: &bodyBytes},
			"trailers":        {Kind: value.KindOption, Elem: &trailerType},
		},
		FieldOrder: []string{"method", "scheme", "authority", "path-with-query", "headers", "body", "trailers"},
	}
}

// ToValue encodes r as the WIT record the guest's handle export receives.
// Header and trailer tuples are emitted in sorted key order so the encoding
// is deterministic and replay-stable.
func (r IncomingRequest) ToValue() value.Value {
	fields := map[string]value.Value{
		"method":          value.Str(r.Method),
		"scheme":          value.Str(r.Scheme),
		"authority":       value.Str(r.Authority),
		"path-with-query": value.Str(r.PathWithQuery),
		"headers":         headerPairs(r.Headers),
	}

	if r.Body == nil {
		fields["body"] = value.OptionNone()
	} else {
		fields["body"] = value.OptionSome(listFromBytes(r.Body))
	}

	if r.Trailers == nil {
		fields["trailers"] = value.OptionNone()
	} else {
		fields["trailers"] = value.OptionSome(headerPairs(r.Trailers))
	}

	return value.RecordVal(fields)
}

// IncomingRequestFromValue decodes the WIT record back into an
// IncomingRequest, the inverse of ToValue.
func IncomingRequestFromValue(v value.Value) (IncomingRequest, error) {
	if v.Kind != value.KindRecord {
		return IncomingRequest{}, fmt.Errorf("expected incoming-http-request record, got %s", v.Kind)
	}

	var req IncomingRequest
	var err error
	if req.Method, err = stringField(v, "method"); err != nil {
		return IncomingRequest{}, err
	}
	if req.Scheme, err = stringField(v, "scheme"); err != nil {
		return IncomingRequest{}, err
	}
	if req.Authority, err = stringField(v, "authority"); err != nil {
		return IncomingRequest{}, err
	}
	if req.PathWithQuery, err = stringField(v, "path-with-query"); err != nil {
		return IncomingRequest{}, err
	}

	headers, ok := v.Flds["headers"]
	if !ok {
		return IncomingRequest{}, fmt.Errorf("incoming-http-request missing headers")
	}
	if req.Headers, err = pairsToMap(headers); err != nil {
		return IncomingRequest{}, fmt.Errorf("headers: %w", err)
	}

	if body, ok := v.Flds["body"]; ok && body.Some != nil {
		if req.Body, err = bytesFromList(*body.Some); err != nil {
			return IncomingRequest{}, fmt.Errorf("body: %w", err)
		}
	}

	if trailers, ok := v.Flds["trailers"]; ok && trailers.Some != nil {
		if req.Trailers, err = pairsToMap(*trailers.Some); err != nil {
			return IncomingRequest{}, fmt.Errorf("trailers: %w", err)
		}
	}

	return req, nil
}

func stringField(v value.Value, name string) (string, error) {
	fv, ok := v.Flds[name]
	if !ok || fv.Kind != value.KindString {
		return "", fmt.Errorf("incoming-http-request field %q missing or not a string", name)
	}
	return fv.String, nil
}

func headerPairs(m map[string]string) value.Value {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, value.TupleVal(value.Str(k), value.Str(m[k])))
	}
	return value.Value{Kind: value.KindList, List: pairs}
}

func pairsToMap(v value.Value) (map[string]string, error) {
	if v.Kind != value.KindList {
		return nil, fmt.Errorf("expected list of name/value tuples, got %s", v.Kind)
	}
	out := make(map[string]string, len(v.List))
	for i, pair := range v.List {
		if pair.Kind != value.KindTuple || len(pair.List) != 2 ||
			pair.List[0].Kind != value.KindString || pair.List[1].Kind != value.KindString {
			return nil, fmt.Errorf("entry %d is not a (string, string) tuple", i)
		}
		out[pair.List[0].String] = pair.List[1].String
	}
	return out, nil
}
