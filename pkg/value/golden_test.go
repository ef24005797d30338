package value

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wire-format compatibility: testdata holds value encodings produced by the
// first release of this codec. Every one of them must keep decoding, and
// must decode to the same Value a fresh constructor produces - a fixture
// that fails here means the change to the wire format is breaking.
func TestGoldenValues_DecodeUnchanged(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "golden_values_v1.json"))
	require.NoError(t, err)

	var fixtures map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fixtures))

	why := Str("why")
	ok := U(KindU32, 1)
	boom := Str("boom")

	want := map[string]Value{
		"bool":                 Bool(true),
		"u8":                   U(KindU8, 200),
		"u64-max":              U(KindU64, 18446744073709551615),
		"s32":                  S(KindS32, -12345),
		"f64":                  F64Val(3.5),
		"char":                 CharVal('λ'),
		"string":               Str("hello, worker"),
		"list":                 ListVal(U(KindU32, 1), U(KindU32, 2)),
		"tuple":                TupleVal(Bool(false), Str("x")),
		"record":               RecordVal(map[string]Value{"id": Str("abc"), "count": U(KindU32, 5)}),
		"variant-with-payload": VariantVal(1, &why),
		"variant-no-payload":   VariantVal(0, nil),
		"enum":                 EnumVal(2),
		"flags":                FlagsVal("read", "write"),
		"option-some":          OptionSome(U(KindU32, 42)),
		"option-none":          OptionNone(),
		"result-ok":            ResultOk(&ok),
		"result-err":           ResultErr(&boom),
		"handle":               HandleVal("urn:golem:resource:1", 1),
	}

	require.Len(t, fixtures, len(want), "every golden fixture needs a constructor twin")

	for name, expected := range want {
		t.Run(name, func(t *testing.T) {
			encoded, present := fixtures[name]
			require.True(t, present, "fixture %q missing", name)

			decoded, err := DecodeJSON(encoded)
			require.NoError(t, err)
			assert.Equal(t, expected, decoded)

			// The decoded value must also re-encode to something the golden
			// decoder round-trips, i.e. additions stay additive.
			reencoded, err := EncodeJSON(decoded)
			require.NoError(t, err)
			again, err := DecodeJSON(reencoded)
			require.NoError(t, err)
			assert.Equal(t, expected, again)
		})
	}
}
