package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"bool", Bool(true)},
		{"u8", U(KindU8, 200)},
		{"u64", U(KindU64, 18446744073709551615)},
		{"s32", S(KindS32, -12345)},
		{"f64", F64Val(3.14159)},
		{"char", CharVal('λ')},
		{"string", Str("hello, worker")},
		{"list", ListVal(U(KindU32, 1), U(KindU32, 2), U(KindU32, 3))},
		{"tuple", TupleVal(Bool(true), Str("x"))},
		{"record", RecordVal(map[string]Value{"id": Str("abc"), "count": U(KindU32, 5)})},
		{"variant with payload", func() Value { p := Str("why"); return VariantVal(1, &p) }()},
		{"variant without payload", VariantVal(0, nil)},
		{"enum", EnumVal(2)},
		{"flags", FlagsVal("read", "write")},
		{"option some", OptionSome(U(KindU32, 42))},
		{"option none", OptionNone()},
		{"result ok", func() Value { ok := U(KindU32, 1); return ResultOk(&ok) }()},
		{"result err", func() Value { e := Str("boom"); return ResultErr(&e) }()},
		{"handle", HandleVal("urn:golem:resource:1", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeJSON(tt.v)
			require.NoError(t, err)

			decoded, err := DecodeJSON(encoded)
			require.NoError(t, err)

			assert.Equal(t, tt.v, decoded)
		})
	}
}

func TestValidate_NumericRange(t *testing.T) {
	assert.NoError(t, Validate(U(KindU8, 255), AnalysedType{Kind: KindU8}))
	assert.Error(t, Validate(U(KindU8, 256), AnalysedType{Kind: KindU8}))

	assert.NoError(t, Validate(S(KindS8, -128), AnalysedType{Kind: KindS8}))
	assert.Error(t, Validate(S(KindS8, -129), AnalysedType{Kind: KindS8}))
}

func TestValidate_KindMismatch(t *testing.T) {
	err := Validate(Bool(true), AnalysedType{Kind: KindString})
	assert.Error(t, err)
}

func TestValidate_Record(t *testing.T) {
	rt := AnalysedType{Kind: KindRecord, Fields: map[string]AnalysedType{
		"name": {Kind: KindString},
		"age":  {Kind: KindU32},
	}}

	ok := RecordVal(map[string]Value{"name": Str("ada"), "age": U(KindU32, 30)})
	assert.NoError(t, Validate(ok, rt))

	missing := RecordVal(map[string]Value{"name": Str("ada")})
	assert.Error(t, Validate(missing, rt))
}

func TestValidate_List(t *testing.T) {
	lt := AnalysedType{Kind: KindList, Elem: &AnalysedType{Kind: KindU32}}
	assert.NoError(t, Validate(ListVal(U(KindU32, 1), U(KindU32, 2)), lt))
	assert.Error(t, Validate(ListVal(Str("oops")), lt))
}

func TestValidate_Variant(t *testing.T) {
	payloadType := AnalysedType{Kind: KindString}
	vt := AnalysedType{
		Kind:         KindVariant,
		Cases:        []string{"none", "some"},
		CasePayloads: []*AnalysedType{nil, &payloadType},
	}

	assert.NoError(t, Validate(VariantVal(0, nil), vt))

	payload := Str("why")
	assert.NoError(t, Validate(VariantVal(1, &payload), vt))

	badPayload := U(KindU32, 1)
	assert.Error(t, Validate(VariantVal(1, &badPayload), vt))

	assert.Error(t, Validate(VariantVal(5, nil), vt))
}

func TestValidate_Flags(t *testing.T) {
	ft := AnalysedType{Kind: KindFlags, FlagNames: []string{"read", "write"}}
	assert.NoError(t, Validate(FlagsVal("read"), ft))
	assert.Error(t, Validate(FlagsVal("execute"), ft))
}

func TestValidate_Option(t *testing.T) {
	ot := AnalysedType{Kind: KindOption, Elem: &AnalysedType{Kind: KindU32}}
	assert.NoError(t, Validate(OptionNone(), ot))
	assert.NoError(t, Validate(OptionSome(U(KindU32, 1)), ot))
	assert.Error(t, Validate(OptionSome(Str("x")), ot))
}
