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

package value

import (
	"encoding/json"
	"fmt"

	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// wireValue is the JSON-serializable projection of a Value, tagged by kind
// so MarshalJSON/UnmarshalJSON round-trip through a stable wire format
// instead of Go's zero-value-ambiguous struct encoding.
type wireValue struct {
	Kind Kind `json:"kind"`

	Bool   *bool   `json:"bool,omitempty"`
	UInt   *uint64 `json:"uint,omitempty"`
	SInt   *int64  `json:"sint,omitempty"`
	F32    *float32 `json:"f32,omitempty"`
	F64    *float64 `json:"f64,omitempty"`
	Char   *int32  `json:"char,omitempty"`
	String *string `json:"string,omitempty"`

	List  []wireValue          `json:"list,omitempty"`
	Flds  map[string]wireValue `json:"record,omitempty"`
	Flags []string             `json:"flags,omitempty"`

	CaseIdx   *uint32    `json:"case_idx,omitempty"`
	CaseValue *wireValue `json:"case_value,omitempty"`

	Some *wireValue `json:"some,omitempty"`

	Ok    *wireValue `json:"ok,omitempty"`
	Err   *wireValue `json:"err,omitempty"`
	IsErr bool       `json:"is_err,omitempty"`

	HandleURI        *string `json:"handle_uri,omitempty"`
	HandleResourceID *uint64 `json:"handle_resource_id,omitempty"`
}

func toWire(v Value) wireValue {
	w := wireValue{Kind: v.Kind}
	switch v.Kind {
	case KindBool:
		w.Bool = &v.Bool
	case KindU8, KindU16, KindU32, KindU64:
		w.UInt = &v.U64
	case KindS8, KindS16, KindS32, KindS64:
		w.SInt = &v.S64
	case KindF32:
		w.F32 = &v.F32
	case KindF64:
		w.F64 = &v.F64
	case KindChar:
		c := int32(v.Char)
		w.Char = &c
	case KindString:
		w.String = &v.String
	case KindList, KindTuple:
		w.List = make([]wireValue, len(v.List))
		for i, item := range v.List {
			w.List[i] = toWire(item)
		}
	case KindRecord:
		w.Flds = make(map[string]wireValue, len(v.Flds))
		for k, item := range v.Flds {
			w.Flds[k] = toWire(item)
		}
	case KindVariant:
		idx := v.CaseIdx
		w.CaseIdx = &idx
		if v.CaseValue != nil {
			cv := toWire(*v.CaseValue)
			w.CaseValue = &cv
		}
	case KindEnum:
		idx := v.CaseIdx
		w.CaseIdx = &idx
	case KindFlags:
		w.Flags = v.Flags
	case KindOption:
		if v.Some != nil {
			s := toWire(*v.Some)
			w.Some = &s
		}
	case KindResult:
		w.IsErr = v.IsErr
		if v.Ok != nil {
			o := toWire(*v.Ok)
			w.Ok = &o
		}
		if v.Err != nil {
			e := toWire(*v.Err)
			w.Err = &e
		}
	case KindHandle:
		uri := v.HandleURI
		id := v.HandleResourceID
		w.HandleURI = &uri
		w.HandleResourceID = &id
	}
	return w
}

func fromWire(w wireValue) (Value, error) {
	v := Value{Kind: w.Kind}
	switch w.Kind {
	case KindBool:
		if w.Bool == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.Bool = *w.Bool
	case KindU8, KindU16, KindU32, KindU64:
		if w.UInt == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.U64 = *w.UInt
	case KindS8, KindS16, KindS32, KindS64:
		if w.SInt == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.S64 = *w.SInt
	case KindF32:
		if w.F32 == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.F32 = *w.F32
	case KindF64:
		if w.F64 == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.F64 = *w.F64
	case KindChar:
		if w.Char == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.Char = rune(*w.Char)
	case KindString:
		if w.String == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.String = *w.String
	case KindList, KindTuple:
		v.List = make([]Value, len(w.List))
		for i, item := range w.List {
			iv, err := fromWire(item)
			if err != nil {
				return v, fmt.Errorf("item %d: %w", i, err)
			}
			v.List[i] = iv
		}
	case KindRecord:
		v.Flds = make(map[string]Value, len(w.Flds))
		for k, item := range w.Flds {
			iv, err := fromWire(item)
			if err != nil {
				return v, fmt.Errorf("field %q: %w", k, err)
			}
			v.Flds[k] = iv
		}
	case KindVariant:
		if w.CaseIdx == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.CaseIdx = *w.CaseIdx
		if w.CaseValue != nil {
			cv, err := fromWire(*w.CaseValue)
			if err != nil {
				return v, err
			}
			v.CaseValue = &cv
		}
	case KindEnum:
		if w.CaseIdx == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.CaseIdx = *w.CaseIdx
	case KindFlags:
		v.Flags = w.Flags
	case KindOption:
		if w.Some != nil {
			sv, err := fromWire(*w.Some)
			if err != nil {
				return v, err
			}
			v.Some = &sv
		}
	case KindResult:
		v.IsErr = w.IsErr
		if w.Ok != nil {
			ov, err := fromWire(*w.Ok)
			if err != nil {
				return v, err
			}
			v.Ok = &ov
		}
		if w.Err != nil {
			ev, err := fromWire(*w.Err)
			if err != nil {
				return v, err
			}
			v.Err = &ev
		}
	case KindHandle:
		if w.HandleURI == nil || w.HandleResourceID == nil {
			return v, golemerr.NoValueInMessage()
		}
		v.HandleURI = *w.HandleURI
		v.HandleResourceID = *w.HandleResourceID
	default:
		return v, golemerr.ParamTypeMismatch(fmt.Sprintf("unknown kind %q", w.Kind))
	}
	return v, nil
}

// EncodeJSON serializes v to its wire JSON form.
func EncodeJSON(v Value) ([]byte, error) {
	return json.Marshal(toWire(v))
}

// DecodeJSON deserializes a wire JSON form into a Value.
func DecodeJSON(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return Value{}, golemerr.ParamTypeMismatch(err.Error())
	}
	return fromWire(w)
}
