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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecodeTypedJSON decodes the external (API-facing) JSON representation of a
// value under t. Unlike DecodeJSON, which reads the self-describing wire
// form, this reads plain JSON the way a gateway client writes it: numbers
// for numeric types, objects for records, `null` for an absent option.
//
// Numbers are range-checked against the target type; out-of-range is an
// error, never a truncation. A char is its Unicode codepoint. The only
// implicit coercion is the missing-field rule: a record field of option
// type whose key is absent decodes to none. Failures across the whole
// structure are collected and returned together as an ErrorList.
func DecodeTypedJSON(data []byte, t AnalysedType) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("parsing JSON: %w", err)
	}
	var errs ErrorList
	out := decodeTyped(raw, t, "", &errs)
	if len(errs) > 0 {
		return Value{}, errs
	}
	return out, nil
}

func decodeTyped(raw any, t AnalysedType, path string, errs *ErrorList) Value {
	switch t.Kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected bool, got %T", raw))
			return Value{}
		}
		return Bool(b)

	case KindU8, KindU16, KindU32, KindU64:
		n, ok := raw.(json.Number)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected number, got %T", raw))
			return Value{}
		}
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			errs.Add(path, fmt.Sprintf("%s does not fit %s", n.String(), t.Kind))
			return Value{}
		}
		_, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindU64 && u > uint64(max) {
			errs.Add(path, fmt.Sprintf("%s value %s out of range", t.Kind, n.String()))
			return Value{}
		}
		return U(t.Kind, u)

	case KindS8, KindS16, KindS32, KindS64:
		n, ok := raw.(json.Number)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected number, got %T", raw))
			return Value{}
		}
		s, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil {
			errs.Add(path, fmt.Sprintf("%s does not fit %s", n.String(), t.Kind))
			return Value{}
		}
		min, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindS64 && (s < min || s > max) {
			errs.Add(path, fmt.Sprintf("%s value %s out of range", t.Kind, n.String()))
			return Value{}
		}
		return S(t.Kind, s)

	case KindF32:
		n, ok := raw.(json.Number)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected number, got %T", raw))
			return Value{}
		}
		f, err := strconv.ParseFloat(n.String(), 32)
		if err != nil {
			errs.Add(path, fmt.Sprintf("%s does not fit f32", n.String()))
			return Value{}
		}
		return F32Val(float32(f))

	case KindF64:
		n, ok := raw.(json.Number)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected number, got %T", raw))
			return Value{}
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			errs.Add(path, fmt.Sprintf("%s does not fit f64", n.String()))
			return Value{}
		}
		return F64Val(f)

	case KindChar:
		n, ok := raw.(json.Number)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected codepoint number, got %T", raw))
			return Value{}
		}
		cp, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || !utf8.ValidRune(rune(cp)) {
			errs.Add(path, fmt.Sprintf("invalid Unicode codepoint %s", n.String()))
			return Value{}
		}
		return CharVal(rune(cp))

	case KindString:
		s, ok := raw.(string)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected string, got %T", raw))
			return Value{}
		}
		return Str(s)

	case KindList:
		arr, ok := raw.([]any)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected array, got %T", raw))
			return Value{}
		}
		if t.Elem == nil {
			errs.Add(path, "list type missing element type")
			return Value{}
		}
		items := make([]Value, 0, len(arr))
		for i, e := range arr {
			items = append(items, decodeTyped(e, *t.Elem, childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Value{Kind: KindList, List: items}

	case KindTuple:
		arr, ok := raw.([]any)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected array, got %T", raw))
			return Value{}
		}
		if len(arr) != len(t.Items) {
			errs.Add(path, fmt.Sprintf("tuple arity %d, expected %d", len(arr), len(t.Items)))
			return Value{}
		}
		items := make([]Value, 0, len(arr))
		for i, e := range arr {
			items = append(items, decodeTyped(e, t.Items[i], childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Value{Kind: KindTuple, List: items}

	case KindRecord:
		obj, ok := raw.(map[string]any)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected object, got %T", raw))
			return Value{}
		}
		fields := make(map[string]Value, len(t.Fields))
		for name, fieldType := range t.Fields {
			fv, present := obj[name]
			if !present {
				// The single sanctioned implicit coercion: an absent key for
				// an option-typed field reads as none.
				if fieldType.Kind == KindOption {
					fields[name] = OptionNone()
					continue
				}
				errs.Add(path, fmt.Sprintf("missing field %q", name))
				continue
			}
			fields[name] = decodeTyped(fv, fieldType, childPath(path, "."+name), errs)
		}
		return RecordVal(fields)

	case KindVariant:
		// A payload-free case is its bare name; a case with payload is a
		// single-key object {name: payload}.
		if name, ok := raw.(string); ok {
			idx, found := t.caseIndex(name)
			if !found {
				errs.Add(path, fmt.Sprintf("unknown variant case %q", name))
				return Value{}
			}
			if idx < len(t.CasePayloads) && t.CasePayloads[idx] != nil {
				errs.Add(path, fmt.Sprintf("variant case %q requires a payload", name))
				return Value{}
			}
			return VariantVal(uint32(idx), nil)
		}
		obj, ok := raw.(map[string]any)
		if !ok || len(obj) != 1 {
			errs.Add(path, "expected variant case name or single-key object")
			return Value{}
		}
		for name, payload := range obj {
			idx, found := t.caseIndex(name)
			if !found {
				errs.Add(path, fmt.Sprintf("unknown variant case %q", name))
				return Value{}
			}
			if idx >= len(t.CasePayloads) || t.CasePayloads[idx] == nil {
				errs.Add(path, fmt.Sprintf("variant case %q carries no payload", name))
				return Value{}
			}
			inner := decodeTyped(payload, *t.CasePayloads[idx], childPath(path, "."+name), errs)
			return VariantVal(uint32(idx), &inner)
		}
		return Value{}

	case KindEnum:
		name, ok := raw.(string)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected enum case name, got %T", raw))
			return Value{}
		}
		idx, found := t.caseIndex(name)
		if !found {
			errs.Add(path, fmt.Sprintf("unknown enum case %q", name))
			return Value{}
		}
		return EnumVal(uint32(idx))

	case KindFlags:
		arr, ok := raw.([]any)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected array of flag names, got %T", raw))
			return Value{}
		}
		allowed := make(map[string]bool, len(t.FlagNames))
		for _, n := range t.FlagNames {
			allowed[n] = true
		}
		set := make([]string, 0, len(arr))
		for _, e := range arr {
			name, ok := e.(string)
			if !ok || !allowed[name] {
				errs.Add(path, fmt.Sprintf("unknown flag %v", e))
				continue
			}
			set = append(set, name)
		}
		return FlagsVal(set...)

	case KindOption:
		if raw == nil {
			return OptionNone()
		}
		if t.Elem == nil {
			errs.Add(path, "option type missing element type")
			return Value{}
		}
		return OptionSome(decodeTyped(raw, *t.Elem, childPath(path, ".some"), errs))

	case KindResult:
		obj, ok := raw.(map[string]any)
		if !ok || len(obj) != 1 {
			errs.Add(path, `expected {"ok": ...} or {"err": ...}`)
			return Value{}
		}
		if payload, present := obj["ok"]; present {
			if t.OkType == nil {
				if payload != nil {
					errs.Add(path, "result ok carries no payload")
					return Value{}
				}
				return ResultOk(nil)
			}
			inner := decodeTyped(payload, *t.OkType, childPath(path, ".ok"), errs)
			return ResultOk(&inner)
		}
		if payload, present := obj["err"]; present {
			if t.ErrType == nil {
				if payload != nil {
					errs.Add(path, "result err carries no payload")
					return Value{}
				}
				return ResultErr(nil)
			}
			inner := decodeTyped(payload, *t.ErrType, childPath(path, ".err"), errs)
			return ResultErr(&inner)
		}
		errs.Add(path, `expected an "ok" or "err" key`)
		return Value{}

	case KindHandle:
		s, ok := raw.(string)
		if !ok {
			errs.Add(path, fmt.Sprintf("expected handle URI string, got %T", raw))
			return Value{}
		}
		slash := strings.LastIndex(s, "/")
		if slash < 0 {
			errs.Add(path, fmt.Sprintf("handle %q missing resource id suffix", s))
			return Value{}
		}
		id, err := strconv.ParseUint(s[slash+1:], 10, 64)
		if err != nil {
			errs.Add(path, fmt.Sprintf("handle %q has non-numeric resource id", s))
			return Value{}
		}
		return HandleVal(s[:slash], id)

	default:
		errs.Add(path, fmt.Sprintf("unsupported kind %s", t.Kind))
		return Value{}
	}
}

// EncodeTypedJSON encodes v under t into the external JSON representation
// DecodeTypedJSON reads; for every well-typed pair the two are inverse.
func EncodeTypedJSON(v Value, t AnalysedType) ([]byte, error) {
	var errs ErrorList
	raw := encodeTyped(v, t, "", &errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return json.Marshal(raw)
}

func encodeTyped(v Value, t AnalysedType, path string, errs *ErrorList) any {
	if v.Kind != t.Kind {
		errs.Add(path, fmt.Sprintf("expected %s, got %s", t.Kind, v.Kind))
		return nil
	}

	switch t.Kind {
	case KindBool:
		return v.Bool
	case KindU8, KindU16, KindU32, KindU64:
		return json.Number(strconv.FormatUint(v.U64, 10))
	case KindS8, KindS16, KindS32, KindS64:
		return json.Number(strconv.FormatInt(v.S64, 10))
	case KindF32:
		return json.Number(strconv.FormatFloat(float64(v.F32), 'g', -1, 32))
	case KindF64:
		return json.Number(strconv.FormatFloat(v.F64, 'g', -1, 64))
	case KindChar:
		return json.Number(strconv.FormatInt(int64(v.Char), 10))
	case KindString:
		return v.String

	case KindList:
		if t.Elem == nil {
			errs.Add(path, "list type missing element type")
			return nil
		}
		arr := make([]any, 0, len(v.List))
		for i, item := range v.List {
			arr = append(arr, encodeTyped(item, *t.Elem, childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return arr

	case KindTuple:
		if len(v.List) != len(t.Items) {
			errs.Add(path, fmt.Sprintf("tuple arity %d, expected %d", len(v.List), len(t.Items)))
			return nil
		}
		arr := make([]any, 0, len(v.List))
		for i, item := range v.List {
			arr = append(arr, encodeTyped(item, t.Items[i], childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return arr

	case KindRecord:
		obj := make(map[string]any, len(t.Fields))
		for name, fieldType := range t.Fields {
			fv, present := v.Flds[name]
			if !present {
				errs.Add(path, fmt.Sprintf("missing field %q", name))
				continue
			}
			obj[name] = encodeTyped(fv, fieldType, childPath(path, "."+name), errs)
		}
		return obj

	case KindVariant:
		if int(v.CaseIdx) >= len(t.Cases) {
			errs.Add(path, fmt.Sprintf("variant case index %d out of range", v.CaseIdx))
			return nil
		}
		name := t.Cases[v.CaseIdx]
		if v.CaseValue == nil {
			return name
		}
		if int(v.CaseIdx) >= len(t.CasePayloads) || t.CasePayloads[v.CaseIdx] == nil {
			errs.Add(path, fmt.Sprintf("variant case %q carries no payload", name))
			return nil
		}
		return map[string]any{
			name: encodeTyped(*v.CaseValue, *t.CasePayloads[v.CaseIdx], childPath(path, "."+name), errs),
		}

	case KindEnum:
		if int(v.CaseIdx) >= len(t.Cases) {
			errs.Add(path, fmt.Sprintf("enum case index %d out of range", v.CaseIdx))
			return nil
		}
		return t.Cases[v.CaseIdx]

	case KindFlags:
		arr := make([]any, 0, len(v.Flags))
		for _, f := range v.Flags {
			arr = append(arr, f)
		}
		return arr

	case KindOption:
		if v.Some == nil {
			return nil
		}
		if t.Elem == nil {
			errs.Add(path, "option type missing element type")
			return nil
		}
		return encodeTyped(*v.Some, *t.Elem, childPath(path, ".some"), errs)

	case KindResult:
		if v.IsErr {
			if v.Err == nil {
				return map[string]any{"err": nil}
			}
			if t.ErrType == nil {
				errs.Add(path, "result err carries no payload")
				return nil
			}
			return map[string]any{"err": encodeTyped(*v.Err, *t.ErrType, childPath(path, ".err"), errs)}
		}
		if v.Ok == nil {
			return map[string]any{"ok": nil}
		}
		if t.OkType == nil {
			errs.Add(path, "result ok carries no payload")
			return nil
		}
		return map[string]any{"ok": encodeTyped(*v.Ok, *t.OkType, childPath(path, ".ok"), errs)}

	case KindHandle:
		return v.HandleURI + "/" + strconv.FormatUint(v.HandleResourceID, 10)

	default:
		errs.Add(path, fmt.Sprintf("unsupported kind %s", t.Kind))
		return nil
	}
}
