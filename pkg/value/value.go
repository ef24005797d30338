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

// Package value implements the typed value codec used at every boundary a
// worker crosses: function parameters and results, and oplog payloads. A
// Value is the runtime's dynamic wire representation; paired with an
// AnalysedType it becomes a TypeAnnotatedValue that the codec can decode
// from and encode to JSON with full structural validation.
package value

import "fmt"

// Kind identifies the shape of a Value.
type Kind string

const (
	KindBool    Kind = "bool"
	KindU8      Kind = "u8"
	KindU16     Kind = "u16"
	KindU32     Kind = "u32"
	KindU64     Kind = "u64"
	KindS8      Kind = "s8"
	KindS16     Kind = "s16"
	KindS32     Kind = "s32"
	KindS64     Kind = "s64"
	KindF32     Kind = "f32"
	KindF64     Kind = "f64"
	KindChar    Kind = "char"
	KindString  Kind = "string"
	KindList    Kind = "list"
	KindTuple   Kind = "tuple"
	KindRecord  Kind = "record"
	KindVariant Kind = "variant"
	KindEnum    Kind = "enum"
	KindFlags   Kind = "flags"
	KindOption  Kind = "option"
	KindResult  Kind = "result"
	KindHandle  Kind = "handle"
)

// Value is a dynamically-typed wire value, modelled as a tagged union since
// no cgo WASM component-model runtime is in scope here. Only the field(s)
// relevant to Kind are populated; the rest are left zero.
type Value struct {
	Kind Kind

	Bool   bool
	U64    uint64 // holds U8/U16/U32/U64
	S64    int64  // holds S8/S16/S32/S64
	F32    float32
	F64    float64
	Char   rune
	String string

	List []Value // List, Tuple
	Flds map[string]Value // Record, indexed by field name

	CaseIdx   uint32 // Variant, Enum
	CaseValue *Value // Variant (nil if the case carries no payload)

	Flags []string // Flags: set bit names

	Some *Value // Option: nil means None

	Ok  *Value // Result: exactly one of Ok/Err is non-nil when IsErr distinguishes
	Err *Value
	IsErr bool // Result: true selects Err, false selects Ok (both may be nil for unit variants)

	HandleURI        string // Handle
	HandleResourceID uint64
}

// Bool constructs a KindBool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// U constructs an unsigned integer value of the given bit width (8/16/32/64).
func U(kind Kind, v uint64) Value { return Value{Kind: kind, U64: v} }

// S constructs a signed integer value of the given bit width (8/16/32/64).
func S(kind Kind, v int64) Value { return Value{Kind: kind, S64: v} }

// F32Val constructs a KindF32 value.
func F32Val(f float32) Value { return Value{Kind: KindF32, F32: f} }

// F64Val constructs a KindF64 value.
func F64Val(f float64) Value { return Value{Kind: KindF64, F64: f} }

// CharVal constructs a KindChar value.
func CharVal(r rune) Value { return Value{Kind: KindChar, Char: r} }

// Str constructs a KindString value.
func Str(s string) Value { return Value{Kind: KindString, String: s} }

// ListVal constructs a KindList value.
func ListVal(items ...Value) Value { return Value{Kind: KindList, List: items} }

// TupleVal constructs a KindTuple value.
func TupleVal(items ...Value) Value { return Value{Kind: KindTuple, List: items} }

// RecordVal constructs a KindRecord value.
func RecordVal(fields map[string]Value) Value { return Value{Kind: KindRecord, Flds: fields} }

// VariantVal constructs a KindVariant value. payload may be nil.
func VariantVal(caseIdx uint32, payload *Value) Value {
	return Value{Kind: KindVariant, CaseIdx: caseIdx, CaseValue: payload}
}

// EnumVal constructs a KindEnum value.
func EnumVal(caseIdx uint32) Value { return Value{Kind: KindEnum, CaseIdx: caseIdx} }

// FlagsVal constructs a KindFlags value.
func FlagsVal(set ...string) Value { return Value{Kind: KindFlags, Flags: set} }

// OptionSome constructs a present KindOption value.
func OptionSome(v Value) Value { return Value{Kind: KindOption, Some: &v} }

// OptionNone constructs an absent KindOption value.
func OptionNone() Value { return Value{Kind: KindOption} }

// ResultOk constructs a success KindResult value. v may be nil for a unit ok case.
func ResultOk(v *Value) Value { return Value{Kind: KindResult, Ok: v} }

// ResultErr constructs a failure KindResult value. v may be nil for a unit err case.
func ResultErr(v *Value) Value { return Value{Kind: KindResult, Err: v, IsErr: true} }

// HandleVal constructs a KindHandle value referencing a host-visible resource.
func HandleVal(uri string, resourceID uint64) Value {
	return Value{Kind: KindHandle, HandleURI: uri, HandleResourceID: resourceID}
}

func (v Value) String2() string {
	return fmt.Sprintf("%s(%v)", v.Kind, v.describe())
}

func (v Value) describe() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindU8, KindU16, KindU32, KindU64:
		return v.U64
	case KindS8, KindS16, KindS32, KindS64:
		return v.S64
	case KindF32:
		return v.F32
	case KindF64:
		return v.F64
	case KindChar:
		return string(v.Char)
	case KindString:
		return v.String
	default:
		return v.Kind
	}
}
