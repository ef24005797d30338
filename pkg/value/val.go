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
	"fmt"
	"unicode/utf8"
)

// Val is the component-model-side representation of a value: positional and
// schema-dependent where Value is self-describing. Records carry fields in
// declaration order without names, variants and enums are selected by case
// name, and flags are a bitset over the type's declared flag order. A Val is
// meaningless without the AnalysedType it was built against, which is why
// every conversion in this file takes the type explicitly.
type Val struct {
	Kind Kind

	Bool   bool
	U64    uint64
	S64    int64
	F32    float32
	F64    float64
	Char   rune
	String string

	// List and Tuple elements; for Record, the fields in declaration order.
	Elems []Val

	// Variant / Enum case selection by declared name.
	Case    string
	Payload *Val // Variant payload, nil when the case carries none

	// Flags as a bitset over AnalysedType.FlagNames order.
	Bits uint64

	Some *Val // Option

	Ok    *Val // Result
	Err   *Val
	IsErr bool

	HandleURI        string
	HandleResourceID uint64
}

// TypeAnnotatedValue pairs a Value with the AnalysedType it conforms to.
// Nothing else in the module uses it; the codec functions take the value
// and its type as separate arguments.
type TypeAnnotatedValue struct {
	Value Value
	Type  AnalysedType
}

// FromVal converts a component-model Val into the self-describing Value
// under t, resolving case names to indices and field positions to names.
// Per-leaf failures are collected into one ErrorList instead of stopping at
// the first, so a caller sees every mismatch in a deep structure at once.
func FromVal(v Val, t AnalysedType) (Value, error) {
	var errs ErrorList
	out := fromVal(v, t, "", &errs)
	if len(errs) > 0 {
		return Value{}, errs
	}
	return out, nil
}

func fromVal(v Val, t AnalysedType, path string, errs *ErrorList) Value {
	if v.Kind != t.Kind {
		errs.Add(path, fmt.Sprintf("expected %s, got %s", t.Kind, v.Kind))
		return Value{}
	}

	switch t.Kind {
	case KindBool:
		return Bool(v.Bool)

	case KindU8, KindU16, KindU32, KindU64:
		_, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindU64 && v.U64 > uint64(max) {
			errs.Add(path, fmt.Sprintf("%s value %d out of range", t.Kind, v.U64))
			return Value{}
		}
		return U(t.Kind, v.U64)

	case KindS8, KindS16, KindS32, KindS64:
		min, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindS64 && (v.S64 < min || v.S64 > max) {
			errs.Add(path, fmt.Sprintf("%s value %d out of range", t.Kind, v.S64))
			return Value{}
		}
		return S(t.Kind, v.S64)

	case KindF32:
		return F32Val(v.F32)

	case KindF64:
		return F64Val(v.F64)

	case KindChar:
		if !utf8.ValidRune(v.Char) {
			errs.Add(path, fmt.Sprintf("invalid Unicode codepoint %d", v.Char))
			return Value{}
		}
		return CharVal(v.Char)

	case KindString:
		return Str(v.String)

	case KindList:
		if t.Elem == nil {
			errs.Add(path, "list type missing element type")
			return Value{}
		}
		items := make([]Value, 0, len(v.Elems))
		for i, e := range v.Elems {
			items = append(items, fromVal(e, *t.Elem, childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Value{Kind: KindList, List: items}

	case KindTuple:
		if len(v.Elems) != len(t.Items) {
			errs.Add(path, fmt.Sprintf("tuple arity %d, expected %d", len(v.Elems), len(t.Items)))
			return Value{}
		}
		items := make([]Value, 0, len(v.Elems))
		for i, e := range v.Elems {
			items = append(items, fromVal(e, t.Items[i], childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Value{Kind: KindTuple, List: items}

	case KindRecord:
		names := t.fieldOrder()
		if len(v.Elems) != len(names) {
			errs.Add(path, fmt.Sprintf("record has %d fields, expected %d", len(v.Elems), len(names)))
			return Value{}
		}
		fields := make(map[string]Value, len(names))
		for i, name := range names {
			fields[name] = fromVal(v.Elems[i], t.Fields[name], childPath(path, "."+name), errs)
		}
		return RecordVal(fields)

	case KindVariant:
		idx, ok := t.caseIndex(v.Case)
		if !ok {
			errs.Add(path, fmt.Sprintf("unknown variant case %q", v.Case))
			return Value{}
		}
		var payloadType *AnalysedType
		if idx < len(t.CasePayloads) {
			payloadType = t.CasePayloads[idx]
		}
		if (payloadType == nil) != (v.Payload == nil) {
			errs.Add(path, fmt.Sprintf("variant case %q payload presence mismatch", v.Case))
			return Value{}
		}
		if v.Payload == nil {
			return VariantVal(uint32(idx), nil)
		}
		payload := fromVal(*v.Payload, *payloadType, childPath(path, "."+v.Case), errs)
		return VariantVal(uint32(idx), &payload)

	case KindEnum:
		idx, ok := t.caseIndex(v.Case)
		if !ok {
			errs.Add(path, fmt.Sprintf("unknown enum case %q", v.Case))
			return Value{}
		}
		return EnumVal(uint32(idx))

	case KindFlags:
		if len(t.FlagNames) > 64 {
			errs.Add(path, fmt.Sprintf("flags type declares %d names, bitset supports 64", len(t.FlagNames)))
			return Value{}
		}
		set := make([]string, 0)
		for i, name := range t.FlagNames {
			if v.Bits&(1<<uint(i)) != 0 {
				set = append(set, name)
			}
		}
		if extra := v.Bits >> uint(len(t.FlagNames)); extra != 0 {
			errs.Add(path, "flags bitset has bits beyond the declared names")
			return Value{}
		}
		return FlagsVal(set...)

	case KindOption:
		if v.Some == nil {
			return OptionNone()
		}
		if t.Elem == nil {
			errs.Add(path, "option type missing element type")
			return Value{}
		}
		return OptionSome(fromVal(*v.Some, *t.Elem, childPath(path, ".some"), errs))

	case KindResult:
		if v.IsErr {
			if (t.ErrType == nil) != (v.Err == nil) {
				errs.Add(path, "result err payload presence mismatch")
				return Value{}
			}
			if v.Err == nil {
				return ResultErr(nil)
			}
			inner := fromVal(*v.Err, *t.ErrType, childPath(path, ".err"), errs)
			return ResultErr(&inner)
		}
		if (t.OkType == nil) != (v.Ok == nil) {
			errs.Add(path, "result ok payload presence mismatch")
			return Value{}
		}
		if v.Ok == nil {
			return ResultOk(nil)
		}
		inner := fromVal(*v.Ok, *t.OkType, childPath(path, ".ok"), errs)
		return ResultOk(&inner)

	case KindHandle:
		return HandleVal(v.HandleURI, v.HandleResourceID)

	default:
		errs.Add(path, fmt.Sprintf("unsupported kind %s", t.Kind))
		return Value{}
	}
}

// ToVal converts a self-describing Value into its component-model Val under
// t, resolving case indices back to names and named fields to declaration
// order. Like FromVal, it reports the union of per-leaf failures.
func ToVal(v Value, t AnalysedType) (Val, error) {
	var errs ErrorList
	out := toVal(v, t, "", &errs)
	if len(errs) > 0 {
		return Val{}, errs
	}
	return out, nil
}

func toVal(v Value, t AnalysedType, path string, errs *ErrorList) Val {
	if v.Kind != t.Kind {
		errs.Add(path, fmt.Sprintf("expected %s, got %s", t.Kind, v.Kind))
		return Val{}
	}

	switch t.Kind {
	case KindBool:
		return Val{Kind: KindBool, Bool: v.Bool}

	case KindU8, KindU16, KindU32, KindU64:
		_, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindU64 && v.U64 > uint64(max) {
			errs.Add(path, fmt.Sprintf("%s value %d out of range", t.Kind, v.U64))
			return Val{}
		}
		return Val{Kind: t.Kind, U64: v.U64}

	case KindS8, KindS16, KindS32, KindS64:
		min, max, _, _ := primitiveRange(t.Kind)
		if t.Kind != KindS64 && (v.S64 < min || v.S64 > max) {
			errs.Add(path, fmt.Sprintf("%s value %d out of range", t.Kind, v.S64))
			return Val{}
		}
		return Val{Kind: t.Kind, S64: v.S64}

	case KindF32:
		return Val{Kind: KindF32, F32: v.F32}

	case KindF64:
		return Val{Kind: KindF64, F64: v.F64}

	case KindChar:
		if !utf8.ValidRune(v.Char) {
			errs.Add(path, fmt.Sprintf("invalid Unicode codepoint %d", v.Char))
			return Val{}
		}
		return Val{Kind: KindChar, Char: v.Char}

	case KindString:
		return Val{Kind: KindString, String: v.String}

	case KindList:
		if t.Elem == nil {
			errs.Add(path, "list type missing element type")
			return Val{}
		}
		elems := make([]Val, 0, len(v.List))
		for i, item := range v.List {
			elems = append(elems, toVal(item, *t.Elem, childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Val{Kind: KindList, Elems: elems}

	case KindTuple:
		if len(v.List) != len(t.Items) {
			errs.Add(path, fmt.Sprintf("tuple arity %d, expected %d", len(v.List), len(t.Items)))
			return Val{}
		}
		elems := make([]Val, 0, len(v.List))
		for i, item := range v.List {
			elems = append(elems, toVal(item, t.Items[i], childPath(path, fmt.Sprintf("[%d]", i)), errs))
		}
		return Val{Kind: KindTuple, Elems: elems}

	case KindRecord:
		names := t.fieldOrder()
		elems := make([]Val, 0, len(names))
		for _, name := range names {
			fv, present := v.Flds[name]
			if !present {
				errs.Add(path, fmt.Sprintf("record missing field %q", name))
				elems = append(elems, Val{})
				continue
			}
			elems = append(elems, toVal(fv, t.Fields[name], childPath(path, "."+name), errs))
		}
		return Val{Kind: KindRecord, Elems: elems}

	case KindVariant:
		if int(v.CaseIdx) >= len(t.Cases) {
			errs.Add(path, fmt.Sprintf("variant case index %d out of range", v.CaseIdx))
			return Val{}
		}
		name := t.Cases[v.CaseIdx]
		var payloadType *AnalysedType
		if int(v.CaseIdx) < len(t.CasePayloads) {
			payloadType = t.CasePayloads[v.CaseIdx]
		}
		if (payloadType == nil) != (v.CaseValue == nil) {
			errs.Add(path, fmt.Sprintf("variant case %q payload presence mismatch", name))
			return Val{}
		}
		if v.CaseValue == nil {
			return Val{Kind: KindVariant, Case: name}
		}
		payload := toVal(*v.CaseValue, *payloadType, childPath(path, "."+name), errs)
		return Val{Kind: KindVariant, Case: name, Payload: &payload}

	case KindEnum:
		if int(v.CaseIdx) >= len(t.Cases) {
			errs.Add(path, fmt.Sprintf("enum case index %d out of range", v.CaseIdx))
			return Val{}
		}
		return Val{Kind: KindEnum, Case: t.Cases[v.CaseIdx]}

	case KindFlags:
		if len(t.FlagNames) > 64 {
			errs.Add(path, fmt.Sprintf("flags type declares %d names, bitset supports 64", len(t.FlagNames)))
			return Val{}
		}
		position := make(map[string]int, len(t.FlagNames))
		for i, name := range t.FlagNames {
			position[name] = i
		}
		var bits uint64
		for _, f := range v.Flags {
			i, ok := position[f]
			if !ok {
				errs.Add(path, fmt.Sprintf("unknown flag %q", f))
				continue
			}
			bits |= 1 << uint(i)
		}
		return Val{Kind: KindFlags, Bits: bits}

	case KindOption:
		if v.Some == nil {
			return Val{Kind: KindOption}
		}
		if t.Elem == nil {
			errs.Add(path, "option type missing element type")
			return Val{}
		}
		inner := toVal(*v.Some, *t.Elem, childPath(path, ".some"), errs)
		return Val{Kind: KindOption, Some: &inner}

	case KindResult:
		if v.IsErr {
			if (t.ErrType == nil) != (v.Err == nil) {
				errs.Add(path, "result err payload presence mismatch")
				return Val{}
			}
			if v.Err == nil {
				return Val{Kind: KindResult, IsErr: true}
			}
			inner := toVal(*v.Err, *t.ErrType, childPath(path, ".err"), errs)
			return Val{Kind: KindResult, IsErr: true, Err: &inner}
		}
		if (t.OkType == nil) != (v.Ok == nil) {
			errs.Add(path, "result ok payload presence mismatch")
			return Val{}
		}
		if v.Ok == nil {
			return Val{Kind: KindResult}
		}
		inner := toVal(*v.Ok, *t.OkType, childPath(path, ".ok"), errs)
		return Val{Kind: KindResult, Ok: &inner}

	case KindHandle:
		return Val{Kind: KindHandle, HandleURI: v.HandleURI, HandleResourceID: v.HandleResourceID}

	default:
		errs.Add(path, fmt.Sprintf("unsupported kind %s", t.Kind))
		return Val{}
	}
}

func childPath(parent, leg string) string {
	if parent == "" && len(leg) > 0 && leg[0] == '.' {
		return leg[1:]
	}
	return parent + leg
}
