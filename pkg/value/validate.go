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

	"github.com/golemcloud/worker-executor/pkg/golemerr"
)

// Validate checks that v structurally conforms to t, range-checking numeric
// fields and recursing into composite shapes. A mismatch is reported as a
// golemerr.TypeValueMismatch error so callers can surface ParamTypeMismatch
// at the host boundary without re-deriving the reason.
func Validate(v Value, t AnalysedType) error {
	if v.Kind != t.Kind {
		return golemerr.ValueMismatch(fmt.Sprintf("expected kind %s, got %s", t.Kind, v.Kind))
	}

	switch t.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		_, max, _, ok := primitiveRange(t.Kind)
		if ok && t.Kind != KindU64 && v.U64 > uint64(max) {
			return golemerr.ValueMismatch(fmt.Sprintf("%s value %d out of range", t.Kind, v.U64))
		}
		return nil

	case KindS8, KindS16, KindS32, KindS64:
		min, max, _, ok := primitiveRange(t.Kind)
		if ok && t.Kind != KindS64 && (v.S64 < min || v.S64 > max) {
			return golemerr.ValueMismatch(fmt.Sprintf("%s value %d out of range", t.Kind, v.S64))
		}
		return nil

	case KindBool, KindF32, KindF64, KindChar, KindString:
		return nil

	case KindList:
		if t.Elem == nil {
			return golemerr.ValueMismatch("list type missing element type")
		}
		for i, item := range v.List {
			if err := Validate(item, *t.Elem); err != nil {
				return fmt.Errorf("list[%d]: %w", i, err)
			}
		}
		return nil

	case KindTuple:
		if len(v.List) != len(t.Items) {
			return golemerr.ValueMismatch(fmt.Sprintf("tuple arity %d, expected %d", len(v.List), len(t.Items)))
		}
		for i, item := range v.List {
			if err := Validate(item, t.Items[i]); err != nil {
				return fmt.Errorf("tuple[%d]: %w", i, err)
			}
		}
		return nil

	case KindRecord:
		for name, fieldType := range t.Fields {
			fv, present := v.Flds[name]
			if !present {
				return golemerr.ValueMismatch(fmt.Sprintf("record missing field %q", name))
			}
			if err := Validate(fv, fieldType); err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
		}
		return nil

	case KindVariant:
		if int(v.CaseIdx) >= len(t.Cases) {
			return golemerr.ValueMismatch(fmt.Sprintf("variant case index %d out of range", v.CaseIdx))
		}
		var payloadType *AnalysedType
		if int(v.CaseIdx) < len(t.CasePayloads) {
			payloadType = t.CasePayloads[v.CaseIdx]
		}
		if (payloadType == nil) != (v.CaseValue == nil) {
			return golemerr.ValueMismatch("variant payload presence mismatch")
		}
		if payloadType != nil {
			return Validate(*v.CaseValue, *payloadType)
		}
		return nil

	case KindEnum:
		if int(v.CaseIdx) >= len(t.Cases) {
			return golemerr.ValueMismatch(fmt.Sprintf("enum case index %d out of range", v.CaseIdx))
		}
		return nil

	case KindFlags:
		allowed := make(map[string]bool, len(t.FlagNames))
		for _, n := range t.FlagNames {
			allowed[n] = true
		}
		for _, f := range v.Flags {
			if !allowed[f] {
				return golemerr.ValueMismatch(fmt.Sprintf("unknown flag %q", f))
			}
		}
		return nil

	case KindOption:
		if v.Some == nil {
			return nil
		}
		if t.Elem == nil {
			return golemerr.ValueMismatch("option type missing element type")
		}
		return Validate(*v.Some, *t.Elem)

	case KindResult:
		if v.IsErr {
			if v.Err == nil || t.ErrType == nil {
				return nil
			}
			return Validate(*v.Err, *t.ErrType)
		}
		if v.Ok == nil || t.OkType == nil {
			return nil
		}
		return Validate(*v.Ok, *t.OkType)

	case KindHandle:
		return nil

	default:
		return golemerr.ValueMismatch(fmt.Sprintf("unknown type kind %s", t.Kind))
	}
}
