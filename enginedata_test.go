package psd

import (
	"bytes"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// edString16 renders s as a parenthesized engine-data string: BOM plus
// UTF-16BE content with parentheses and backslashes escaped.
func edString16(s string) []byte {
	var out bytes.Buffer
	out.WriteByte('(')
	out.Write([]byte{0xFE, 0xFF})
	for _, u := range utf16.Encode([]rune(s)) {
		for _, b := range []byte{byte(u >> 8), byte(u)} {
			if b == '(' || b == ')' || b == '\\' {
				out.WriteByte('\\')
			}
			out.WriteByte(b)
		}
	}
	out.WriteByte(')')
	return out.Bytes()
}

func TestParseEngineData_Scalars(t *testing.T) {
	data := []byte("<< /Size 24.5 /Count -3 /Auto true /Kerning false >>")

	ed, err := parseEngineData(data)
	require.NoError(t, err)
	assert.Equal(t, 24.5, ed["Size"])
	assert.Equal(t, -3.0, ed["Count"])
	assert.Equal(t, true, ed["Auto"])
	assert.Equal(t, false, ed["Kerning"])
}

func TestParseEngineData_NestedStructures(t *testing.T) {
	data := []byte(`<<
	/Outer <<
		/Values [ 1 0 .5 ]
		/Inner << /Flag true >>
	>>
	>>`)

	ed, err := parseEngineData(data)
	require.NoError(t, err)

	outer, ok := ed["Outer"].(map[string]any)
	require.True(t, ok)

	values, ok := outer["Values"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{1.0, 0.0, 0.5}, values)

	inner, ok := outer["Inner"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, inner["Flag"])
}

func TestParseEngineData_Strings(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("<< /Text ")
	buf.Write(edString16("Hello (world) \\ done"))
	buf.WriteString(" >>")

	ed, err := parseEngineData(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Hello (world) \\ done", ed["Text"])
}

func TestParseEngineData_UnicodeString(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("<< /Text ")
	buf.Write(edString16("日本語テキスト"))
	buf.WriteString(" >>")

	ed, err := parseEngineData(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "日本語テキスト", ed["Text"])
}

func TestParseEngineData_NameValues(t *testing.T) {
	data := []byte("<< /Kind /Paragraph >>")

	ed, err := parseEngineData(data)
	require.NoError(t, err)
	assert.Equal(t, "Paragraph", ed["Kind"])
}

func TestParseEngineData_Errors(t *testing.T) {
	cases := map[string][]byte{
		"not a dict":      []byte("[ 1 2 3 ]"),
		"empty":           nil,
		"unterminated":    []byte("<< /A 1"),
		"bad number":      []byte("<< /A 1..2 >>"),
		"missing key":     []byte("<< 5 >>"),
		"unclosed string": []byte("<< /A (abc >>"),
		"unclosed array":  []byte("<< /A [ 1 2 >>"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseEngineData(data)
			assert.Error(t, err)
		})
	}
}

func TestEngineDataLookupHelpers(t *testing.T) {
	ed := map[string]any{
		"A": map[string]any{
			"B": map[string]any{
				"List":  []any{1.0, 2.0},
				"Str":   "x",
				"Num":   5.0,
				"Truth": true,
			},
		},
	}

	b, ok := edDict(ed, "A", "B")
	require.True(t, ok)

	list, ok := edList(b, "List")
	assert.True(t, ok)
	assert.Len(t, list, 2)

	s, ok := edString(b, "Str")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	f, ok := edFloat(b, "Num")
	assert.True(t, ok)
	assert.Equal(t, 5.0, f)

	// Booleans read as 0/1 where a number is expected; some engine keys
	// flip between the two representations.
	f, ok = edFloat(b, "Truth")
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	_, ok = edDict(ed, "A", "missing")
	assert.False(t, ok)
	_, ok = edString(b, "List")
	assert.False(t, ok)
}
