package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docwire/internal/scalar"
)

func TestValueSealed(t *testing.T) {
	// compile-time check that every variant satisfies Value
	var _ Value = Null{}
	var _ Value = Text("a")
	var _ Value = Bool(true)
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = Binary{1}
	var _ Value = UUID(uuid.Nil)
	var _ Value = ObjectID{}
	var _ Value = Date{}
	var _ Value = Time{}
	var _ Value = Timestamp(0)
	var _ Value = Duration{}
	var _ Value = Vector{1}
	var _ Value = Map{}
	var _ Value = Set{}
	var _ Value = List{}
	var _ Value = Document{}
}

func TestDocumentSortedKeys(t *testing.T) {
	doc := Document{
		"zebra":  Text("z"),
		"apple":  Text("a"),
		"banana": Text("b"),
	}
	assert.Equal(t, []string{"apple", "banana", "zebra"}, doc.SortedKeys())
}

func TestDocumentSortedKeys_UTF16Order(t *testing.T) {
	// U+10000 encodes as a surrogate pair (0xD800...) which sorts before U+E000
	doc := Document{"\uE000": Int(1), "\U00010000": Int(2)}
	assert.Equal(t, []string{"\U00010000", "\uE000"}, doc.SortedKeys())
}

func TestFrom(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	got, err := From(map[string]any{
		"s":   "x",
		"n":   42,
		"f":   1.5,
		"b":   true,
		"nil": nil,
		"t":   ts,
		"l":   []any{json.Number("7"), json.Number("7.5")},
		"v":   []float32{0.5},
	})
	require.NoError(t, err)

	doc := got.(Document)
	assert.Equal(t, Text("x"), doc["s"])
	assert.Equal(t, Int(42), doc["n"])
	assert.Equal(t, Float(1.5), doc["f"])
	assert.Equal(t, Bool(true), doc["b"])
	assert.Equal(t, Null{}, doc["nil"])
	assert.Equal(t, Timestamp(scalar.TimestampFromTime(ts)), doc["t"])
	assert.Equal(t, List{Int(7), Float(7.5)}, doc["l"])
	assert.Equal(t, Vector{0.5}, doc["v"])
}

func TestFrom_Unsupported(t *testing.T) {
	_, err := From(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	v, err := ParseJSON([]byte(`{"a":[1,2.5,"x",null,{"b":false}]}`))
	require.NoError(t, err)
	assert.Equal(t, Document{
		"a": List{Int(1), Float(2.5), Text("x"), Null{}, Document{"b": Bool(false)}},
	}, v)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(MustParseJSON(`{"a":[1,{"b":2}]}`), MustParseJSON(`{"a":[1,{"b":2}]}`)))
	assert.False(t, Equal(MustParseJSON(`[1,2]`), MustParseJSON(`[2,1]`)))
	assert.False(t, Equal(Int(1), Float(1)))
}

func TestMap(t *testing.T) {
	m := Map{{Key: Int(1), Value: Text("one")}, {Key: Text("k"), Value: Bool(true)}}
	got, ok := m.Get(Int(1))
	require.True(t, ok)
	assert.Equal(t, Text("one"), got)
	_, ok = m.Get(Int(2))
	assert.False(t, ok)
	assert.False(t, m.TextKeys())
	assert.True(t, Map{{Key: Text("a"), Value: Int(1)}}.TextKeys())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "date", TypeName(Date{}))
	assert.Equal(t, "document", TypeName(Document{}))
	assert.Equal(t, "null", TypeName(nil))
}
