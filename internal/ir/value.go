package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/roach88/docwire/internal/scalar"
)

// Value is a sealed interface over the domain value variants.
// Only the types declared in this file implement it.
type Value interface {
	domainValue()
}

// Null is the absent value. Use Null{} rather than a nil Value.
type Null struct{}

func (Null) domainValue() {}

// Text is a string value.
type Text string

func (Text) domainValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) domainValue() {}

// Int is an integer value.
type Int int64

func (Int) domainValue() {}

// Float is a double-precision value.
type Float float64

func (Float) domainValue() {}

// Binary is an opaque byte blob.
type Binary []byte

func (Binary) domainValue() {}

// UUID is a 128-bit identifier.
type UUID uuid.UUID

func (UUID) domainValue() {}

// ObjectID is a 12-byte opaque identifier.
type ObjectID scalar.ObjectID

func (ObjectID) domainValue() {}

// Date is a calendar date with an unrestricted year.
type Date scalar.Date

func (Date) domainValue() {}

// Time is a wall-clock time of day.
type Time scalar.Time

func (Time) domainValue() {}

// Timestamp is an instant in milliseconds since the Unix epoch.
type Timestamp scalar.Timestamp

func (Timestamp) domainValue() {}

// Duration is a signed (months, days, nanoseconds) duration.
type Duration scalar.Duration

func (Duration) domainValue() {}

// Vector is a float32 embedding.
type Vector scalar.Vector

func (Vector) domainValue() {}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is an insertion-ordered map whose keys may be any variant.
type Map []MapEntry

func (Map) domainValue() {}

// Set is an unordered collection; insertion order is kept for determinism.
type Set []Value

func (Set) domainValue() {}

// List is an ordered sequence.
type List []Value

func (List) domainValue() {}

// Document is a JSON object of named fields.
// Use SortedKeys() for deterministic iteration.
type Document map[string]Value

func (Document) domainValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's string ordering compares UTF-8 bytes, which differs above U+FFFF.
func (d Document) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Get returns the value at key, if present.
func (m Map) Get(key Value) (Value, bool) {
	for _, e := range m {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// TextKeys reports whether every key of the map is Text, so the map can be
// written as a JSON object.
func (m Map) TextKeys() bool {
	for _, e := range m {
		if _, ok := e.Key.(Text); !ok {
			return false
		}
	}
	return true
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports structural equality. Float NaN is never equal to itself.
func Equal(a, b Value) bool {
	if fa, ok := a.(Float); ok {
		if fb, ok := b.(Float); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// TypeName returns a short lowercase name of the variant, for messages.
func TypeName(v Value) string {
	switch v.(type) {
	case Null, nil:
		return "null"
	case Text:
		return "text"
	case Bool:
		return "boolean"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Binary:
		return "binary"
	case UUID:
		return "uuid"
	case ObjectID:
		return "objectId"
	case Date:
		return "date"
	case Time:
		return "time"
	case Timestamp:
		return "timestamp"
	case Duration:
		return "duration"
	case Vector:
		return "vector"
	case Map:
		return "map"
	case Set:
		return "set"
	case List:
		return "list"
	case Document:
		return "document"
	}
	return fmt.Sprintf("%T", v)
}

// From converts a plain Go value into a Value. Values that already are a
// Value pass through; nested maps and slices are converted recursively.
func From(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return fromNumber(val)
	case []byte:
		return Binary(val), nil
	case uuid.UUID:
		return UUID(val), nil
	case scalar.ObjectID:
		return ObjectID(val), nil
	case scalar.Date:
		return Date(val), nil
	case scalar.Time:
		return Time(val), nil
	case scalar.Timestamp:
		return Timestamp(val), nil
	case scalar.Duration:
		return Duration(val), nil
	case scalar.Vector:
		return Vector(val), nil
	case []float32:
		return Vector(val), nil
	case time.Time:
		return Timestamp(scalar.TimestampFromTime(val)), nil
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			item, err := From(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = item
		}
		return list, nil
	case []float64:
		list := make(List, len(val))
		for i, f := range val {
			list[i] = Float(f)
		}
		return list, nil
	case []string:
		list := make(List, len(val))
		for i, s := range val {
			list[i] = Text(s)
		}
		return list, nil
	case map[string]any:
		doc := make(Document, len(val))
		for k, elem := range val {
			item, err := From(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			doc[k] = item
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFrom is like From but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFrom(v any) Value {
	val, err := From(v)
	if err != nil {
		panic(err)
	}
	return val
}

// fromNumber keeps integers exact and falls back to float64 otherwise.
func fromNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil && !math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid number %s: %w", s, err)
	}
	return Float(f), nil
}

// ParseJSON decodes plain JSON into a Value with no extended-JSON
// interpretation: objects become Document, arrays List.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return From(raw)
}

// MustParseJSON is like ParseJSON but panics on error.
func MustParseJSON(data string) Value {
	v, err := ParseJSON([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}
