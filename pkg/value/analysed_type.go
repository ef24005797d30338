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

import "sort"

// AnalysedType describes the static shape a Value must conform to. It is
// the WIT-derived schema carried alongside function signatures and resource
// descriptions, used by the codec to validate a Value structurally before
// it crosses a worker boundary.
type AnalysedType struct {
	Kind Kind

	// Elem describes List/Option/the common element type.
	Elem *AnalysedType

	// Items describes Tuple element types in order.
	Items []AnalysedType

	// Fields describes Record field types by name; FieldOrder preserves the
	// WIT declaration order the component-model representation depends on.
	// When FieldOrder is empty, lexicographic name order is used.
	Fields     map[string]AnalysedType
	FieldOrder []string

	// Cases names Variant/Enum case names in declaration order; for Variant,
	// CasePayloads gives the optional payload type per case (nil = no payload).
	Cases        []string
	CasePayloads []*AnalysedType

	// FlagNames lists the legal flag names for KindFlags.
	FlagNames []string

	// Ok/ErrType describe KindResult's two legs; either may be nil (unit).
	OkType  *AnalysedType
	ErrType *AnalysedType
}

// fieldOrder returns the record's field names in declaration order, or in
// lexicographic order when no declaration order was recorded.
func (t AnalysedType) fieldOrder() []string {
	if len(t.FieldOrder) > 0 {
		return t.FieldOrder
	}
	names := make([]string, 0, len(t.Fields))
	for name := range t.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// caseIndex resolves a variant or enum case name to its declared index.
func (t AnalysedType) caseIndex(name string) (int, bool) {
	for i, c := range t.Cases {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

func primitiveRange(kind Kind) (min, max int64, unsigned bool, ok bool) {
	switch kind {
	case KindU8:
		return 0, 1<<8 - 1, true, true
	case KindU16:
		return 0, 1<<16 - 1, true, true
	case KindU32:
		return 0, 1<<32 - 1, true, true
	case KindU64:
		return 0, 0, true, true // checked via uint64 path, range unused
	case KindS8:
		return -1 << 7, 1<<7 - 1, false, true
	case KindS16:
		return -1 << 15, 1<<15 - 1, false, true
	case KindS32:
		return -1 << 31, 1<<31 - 1, false, true
	case KindS64:
		return 0, 0, false, true // full int64 range, no extra check needed
	default:
		return 0, 0, false, false
	}
}
