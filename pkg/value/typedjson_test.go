package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTypedJSON_Primitives(t *testing.T) {
	v, err := DecodeTypedJSON([]byte(`255`), AnalysedType{Kind: KindU8})
	require.NoError(t, err)
	assert.Equal(t, U(KindU8, 255), v)

	v, err = DecodeTypedJSON([]byte(`955`), AnalysedType{Kind: KindChar})
	require.NoError(t, err)
	assert.Equal(t, CharVal('λ'), v)

	v, err = DecodeTypedJSON([]byte(`"hi"`), AnalysedType{Kind: KindString})
	require.NoError(t, err)
	assert.Equal(t, Str("hi"), v)
}

func TestDecodeTypedJSON_OutOfRangeIsErrorNotTruncation(t *testing.T) {
	_, err := DecodeTypedJSON([]byte(`256`), AnalysedType{Kind: KindU8})
	assert.Error(t, err)

	_, err = DecodeTypedJSON([]byte(`-129`), AnalysedType{Kind: KindS8})
	assert.Error(t, err)

	_, err = DecodeTypedJSON([]byte(`-1`), AnalysedType{Kind: KindU64})
	assert.Error(t, err)
}

func TestDecodeTypedJSON_InvalidCodepoint(t *testing.T) {
	// Surrogate half: not a valid Unicode scalar value.
	_, err := DecodeTypedJSON([]byte(`55296`), AnalysedType{Kind: KindChar})
	assert.Error(t, err)
}

func TestDecodeTypedJSON_MissingOptionFieldIsNone(t *testing.T) {
	v, err := DecodeTypedJSON([]byte(`{"name":"ada","age":36}`), personType())
	require.NoError(t, err)
	assert.Equal(t, OptionNone(), v.Flds["email"])
}

func TestDecodeTypedJSON_MissingRequiredFieldIsError(t *testing.T) {
	_, err := DecodeTypedJSON([]byte(`{"age":36}`), personType())
	assert.Error(t, err)
}

func TestDecodeTypedJSON_CollectsAllLeafErrors(t *testing.T) {
	_, err := DecodeTypedJSON([]byte(`{"age":300,"email":7}`), personType())
	require.Error(t, err)

	var list ErrorList
	require.ErrorAs(t, err, &list)
	// missing name, age out of range, email not a string
	assert.GreaterOrEqual(t, len(list), 3)
}

func TestDecodeTypedJSON_VariantForms(t *testing.T) {
	v, err := DecodeTypedJSON([]byte(`"started"`), eventType())
	require.NoError(t, err)
	assert.Equal(t, VariantVal(0, nil), v)

	v, err = DecodeTypedJSON([]byte(`{"progressed":42}`), eventType())
	require.NoError(t, err)
	require.NotNil(t, v.CaseValue)
	assert.Equal(t, uint64(42), v.CaseValue.U64)

	_, err = DecodeTypedJSON([]byte(`{"started":1}`), eventType())
	assert.Error(t, err)
}

func TestDecodeTypedJSON_Result(t *testing.T) {
	typ := AnalysedType{Kind: KindResult, OkType: &AnalysedType{Kind: KindU32}, ErrType: &AnalysedType{Kind: KindString}}

	v, err := DecodeTypedJSON([]byte(`{"ok":7}`), typ)
	require.NoError(t, err)
	require.NotNil(t, v.Ok)
	assert.Equal(t, uint64(7), v.Ok.U64)

	v, err = DecodeTypedJSON([]byte(`{"err":"boom"}`), typ)
	require.NoError(t, err)
	assert.True(t, v.IsErr)
}

func TestTypedJSONRoundTrip(t *testing.T) {
	email := Str("a@b.c")

	tests := []struct {
		name string
		v    Value
		t    AnalysedType
	}{
		{"bool", Bool(true), AnalysedType{Kind: KindBool}},
		{"u64 max", U(KindU64, 18446744073709551615), AnalysedType{Kind: KindU64}},
		{"s32 negative", S(KindS32, -12345), AnalysedType{Kind: KindS32}},
		{"f64", F64Val(3.14159), AnalysedType{Kind: KindF64}},
		{"char", CharVal('字'), AnalysedType{Kind: KindChar}},
		{
			"record with some",
			RecordVal(map[string]Value{"name": Str("ada"), "age": U(KindU8, 36), "email": OptionSome(email)}),
			personType(),
		},
		{
			"record with none",
			RecordVal(map[string]Value{"name": Str("bob"), "age": U(KindU8, 2), "email": OptionNone()}),
			personType(),
		},
		{"enum", EnumVal(1), colourType()},
		{
			"flags",
			FlagsVal("write"),
			AnalysedType{Kind: KindFlags, FlagNames: []string{"read", "write"}},
		},
		{
			"nested list of records",
			ListVal(RecordVal(map[string]Value{"name": Str("x"), "age": U(KindU8, 1), "email": OptionNone()})),
			AnalysedType{Kind: KindList, Elem: func() *AnalysedType { pt := personType(); return &pt }()},
		},
		{"handle", HandleVal("urn:golem:resource:3", 3), AnalysedType{Kind: KindHandle}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeTypedJSON(tt.v, tt.t)
			require.NoError(t, err)

			decoded, err := DecodeTypedJSON(encoded, tt.t)
			require.NoError(t, err)

			assert.Equal(t, tt.v, decoded)
		})
	}
}

func TestThreeLegRoundTrip(t *testing.T) {
	// JSON -> Value -> Val -> Value -> JSON across one composite shape.
	typ := personType()
	src := []byte(`{"name":"ada","age":36,"email":"a@b.c"}`)

	v, err := DecodeTypedJSON(src, typ)
	require.NoError(t, err)

	val, err := ToVal(v, typ)
	require.NoError(t, err)

	back, err := FromVal(val, typ)
	require.NoError(t, err)
	assert.Equal(t, v, back)

	encoded, err := EncodeTypedJSON(back, typ)
	require.NoError(t, err)

	again, err := DecodeTypedJSON(encoded, typ)
	require.NoError(t, err)
	assert.Equal(t, v, again)
}
