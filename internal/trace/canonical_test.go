package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedAndCompact(t *testing.T) {
	r := Record{
		Type:     TypeTx,
		Store:    "main",
		Seq:      1,
		TxID:     "txn_1",
		ActionID: "a_set[sl_one$]",
		Slice:    "sl_one$",
		Changed:  []string{"sl_one$"},
		Meta:     map[string]string{"store": "main", "action": "a_set[sl_one$]"},
	}

	got, err := MarshalCanonical(r)
	require.NoError(t, err)

	want := `{"action_id":"a_set[sl_one$]","changed":["sl_one$"],` +
		`"meta":{"action":"a_set[sl_one$]","store":"main"},` +
		`"seq":1,"slice":"sl_one$","store":"main","tx_id":"txn_1","type":"TX"}`
	assert.Equal(t, want, string(got))
}

func TestMarshalCanonical_OmitsEmptyFields(t *testing.T) {
	got, err := MarshalCanonical(Record{Type: TypeEffect, Store: "s", Seq: 2, Effect: "watch", Run: 1})
	require.NoError(t, err)

	assert.Equal(t, `{"effect":"watch","run":1,"seq":2,"store":"s","type":"EFFECT"}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(Record{Type: TypeTx, Store: "<a&b>", Seq: 1})
	require.NoError(t, err)

	assert.Contains(t, string(got), `"store":"<a&b>"`)
}

func TestMarshalCanonical_EscapesControlCharacters(t *testing.T) {
	got, err := MarshalCanonical(Record{Type: TypeTx, Store: "a\"b\\c\nd\x01", Seq: 1})
	require.NoError(t, err)

	assert.Contains(t, string(got), `"store":"a\"b\\c\nd\u0001"`)
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "e" followed by a combining acute accent normalizes to U+00E9.
	decomposed := "cafe\u0301"
	got, err := MarshalCanonical(Record{Type: TypeTx, Store: decomposed, Seq: 1})
	require.NoError(t, err)

	assert.Contains(t, string(got), "\"store\":\"caf\u00e9\"")
}

func TestMarshalLines(t *testing.T) {
	got, err := MarshalLines([]Record{
		{Type: TypeTx, Store: "s", Seq: 1},
		{Type: TypeEffect, Store: "s", Seq: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "{\"seq\":1,\"store\":\"s\",\"type\":\"TX\"}\n"+
		"{\"seq\":2,\"store\":\"s\",\"type\":\"EFFECT\"}\n", string(got))
}

func TestCompareUTF16(t *testing.T) {
	// U+1F600 is encoded as surrogates starting at 0xD83D, so it sorts
	// before U+FF61 even though its code point is larger.
	assert.Equal(t, -1, compareUTF16("\U0001F600", "\uFF61"))
	assert.Equal(t, 0, compareUTF16("a", "a"))
	assert.Equal(t, -1, compareUTF16("a", "b"))
}
