package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personType() AnalysedType {
	return AnalysedType{
		Kind: KindRecord,
		Fields: map[string]AnalysedType{
			"name":  {Kind: KindString},
			"age":   {Kind: KindU8},
			"email": {Kind: KindOption, Elem: &AnalysedType{Kind: KindString}},
		},
		FieldOrder: []string{"name", "age", "email"},
	}
}

func colourType() AnalysedType {
	return AnalysedType{Kind: KindEnum, Cases: []string{"red", "green", "blue"}}
}

func eventType() AnalysedType {
	payload := AnalysedType{Kind: KindU32}
	return AnalysedType{
		Kind:         KindVariant,
		Cases:        []string{"started", "progressed", "finished"},
		CasePayloads: []*AnalysedType{nil, &payload, nil},
	}
}

func TestValRoundTrip(t *testing.T) {
	email := Str("a@b.c")
	progress := U(KindU32, 77)

	tests := []struct {
		name string
		v    Value
		t    AnalysedType
	}{
		{"bool", Bool(true), AnalysedType{Kind: KindBool}},
		{"u16", U(KindU16, 65535), AnalysedType{Kind: KindU16}},
		{"s64", S(KindS64, -1), AnalysedType{Kind: KindS64}},
		{"f32", F32Val(1.5), AnalysedType{Kind: KindF32}},
		{"char", CharVal('λ'), AnalysedType{Kind: KindChar}},
		{"string", Str("x"), AnalysedType{Kind: KindString}},
		{
			"list of u32",
			ListVal(U(KindU32, 1), U(KindU32, 2)),
			AnalysedType{Kind: KindList, Elem: &AnalysedType{Kind: KindU32}},
		},
		{
			"tuple",
			TupleVal(Bool(false), Str("y")),
			AnalysedType{Kind: KindTuple, Items: []AnalysedType{{Kind: KindBool}, {Kind: KindString}}},
		},
		{
			"record",
			RecordVal(map[string]Value{"name": Str("ada"), "age": U(KindU8, 36), "email": OptionSome(email)}),
			personType(),
		},
		{
			"record with none option",
			RecordVal(map[string]Value{"name": Str("bob"), "age": U(KindU8, 1), "email": OptionNone()}),
			personType(),
		},
		{"enum", EnumVal(2), colourType()},
		{"variant without payload", VariantVal(0, nil), eventType()},
		{"variant with payload", VariantVal(1, &progress), eventType()},
		{
			"flags",
			FlagsVal("read", "exec"),
			AnalysedType{Kind: KindFlags, FlagNames: []string{"read", "write", "exec"}},
		},
		{
			"result ok",
			func() Value { ok := U(KindU32, 9); return ResultOk(&ok) }(),
			AnalysedType{Kind: KindResult, OkType: &AnalysedType{Kind: KindU32}, ErrType: &AnalysedType{Kind: KindString}},
		},
		{
			"result unit err",
			ResultErr(nil),
			AnalysedType{Kind: KindResult, OkType: &AnalysedType{Kind: KindU32}},
		},
		{"handle", HandleVal("urn:golem:resource:7", 7), AnalysedType{Kind: KindHandle}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := ToVal(tt.v, tt.t)
			require.NoError(t, err)

			back, err := FromVal(val, tt.t)
			require.NoError(t, err)

			assert.Equal(t, tt.v, back)
		})
	}
}

func TestToVal_RecordFieldOrderIsDeclarationOrder(t *testing.T) {
	v := RecordVal(map[string]Value{"name": Str("ada"), "age": U(KindU8, 36), "email": OptionNone()})

	val, err := ToVal(v, personType())
	require.NoError(t, err)

	require.Len(t, val.Elems, 3)
	assert.Equal(t, "ada", val.Elems[0].String)
	assert.Equal(t, uint64(36), val.Elems[1].U64)
	assert.Nil(t, val.Elems[2].Some)
}

func TestToVal_CollectsAllLeafErrors(t *testing.T) {
	// Both the age kind mismatch (s8 against u8) and the missing name should be reported,
	// not just whichever the walk reaches first.
	v := RecordVal(map[string]Value{"age": S(KindS8, 0), "email": OptionNone()})

	_, err := ToVal(v, personType())
	require.Error(t, err)

	var list ErrorList
	require.ErrorAs(t, err, &list)
	assert.GreaterOrEqual(t, len(list), 2)
}

func TestFromVal_UnknownCaseName(t *testing.T) {
	_, err := FromVal(Val{Kind: KindEnum, Case: "magenta"}, colourType())
	assert.Error(t, err)
}

func TestFromVal_FlagsBitset(t *testing.T) {
	typ := AnalysedType{Kind: KindFlags, FlagNames: []string{"read", "write", "exec"}}

	v, err := FromVal(Val{Kind: KindFlags, Bits: 0b101}, typ)
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "exec"}, v.Flags)

	_, err = FromVal(Val{Kind: KindFlags, Bits: 0b1000}, typ)
	assert.Error(t, err)
}
