package doccodec

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/scalar"
)

// Reserved singleton keys of the extended-JSON wire form.
const (
	KeyDate     = "$date"
	KeyUUID     = "$uuid"
	KeyObjectID = "$objectId"
	KeyBinary   = "$binary"
	KeyVector   = "$vector"
)

const msPerDay = 86_400_000

var errNonTextKey = errors.New("map with non-text keys cannot be written to a collection")

// Preprocess converts a domain value into its wire tree: nil, bool, string,
// int64, float64, []any and map[string]any.
func Preprocess(v ir.Value, opts Options) (any, error) {
	return encode(nil, v, opts)
}

// PreprocessPayload converts a command payload built from plain Go values
// and ir values into its wire tree.
func PreprocessPayload(payload map[string]any, opts Options) (map[string]any, error) {
	v, err := ir.From(payload)
	if err != nil {
		return nil, codecErr(nil, err)
	}
	wire, err := encode(nil, v, opts)
	if err != nil {
		return nil, err
	}
	return wire.(map[string]any), nil
}

// isVectorPosition reports whether path ends at a "$vector" key that is not
// part of a projection specification.
func isVectorPosition(path []string) bool {
	n := len(path)
	if n == 0 || path[n-1] != KeyVector {
		return false
	}
	return n < 2 || path[n-2] != "projection"
}

func encode(path []string, v ir.Value, opts Options) (any, error) {
	if opts.BinaryEncodeVectors && isVectorPosition(path) {
		if vec, ok := vectorOf(v); ok {
			return encodeVector(vec, opts), nil
		}
	}

	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.Text:
		return string(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return encodeFloat(path, float64(val), opts)
	case ir.Binary:
		return map[string]any{KeyBinary: scalar.EncodeBinary(val)}, nil
	case ir.UUID:
		s := uuid.UUID(val).String()
		if opts.Mode == ModeTable {
			return s, nil
		}
		return map[string]any{KeyUUID: s}, nil
	case ir.ObjectID:
		s := scalar.ObjectID(val).String()
		if opts.Mode == ModeTable {
			return s, nil
		}
		return map[string]any{KeyObjectID: s}, nil
	case ir.Timestamp:
		if opts.Mode == ModeTable {
			return scalar.Timestamp(val).String(), nil
		}
		return map[string]any{KeyDate: int64(val)}, nil
	case ir.Date:
		d := scalar.Date(val)
		if opts.Mode == ModeTable {
			return d.String(), nil
		}
		if _, err := d.ToTime(); err != nil {
			return nil, codecErr(path, err)
		}
		return map[string]any{KeyDate: d.UnixDays() * msPerDay}, nil
	case ir.Time:
		return scalar.Time(val).String(), nil
	case ir.Duration:
		return scalar.Duration(val).CompactString(), nil
	case ir.Vector:
		return encodeVector(scalar.Vector(val), opts), nil
	case ir.Document:
		out := make(map[string]any, len(val))
		for _, k := range val.SortedKeys() {
			elem, err := encode(append(path, k), val[k], opts)
			if err != nil {
				return nil, err
			}
			out[k] = elem
		}
		return out, nil
	case ir.Map:
		return encodeMap(path, val, opts)
	case ir.List:
		return encodeSeq(path, val, opts)
	case ir.Set:
		return encodeSeq(path, val, opts)
	}
	return nil, codecErr(path, fmt.Errorf("unsupported value %s", ir.TypeName(v)))
}

func encodeFloat(path []string, f float64, opts Options) (any, error) {
	switch {
	case !math.IsNaN(f) && !math.IsInf(f, 0):
		return f, nil
	case opts.Mode != ModeTable:
		return nil, codecErr(path, fmt.Errorf("non-finite float %v", f))
	case math.IsNaN(f):
		return "NaN", nil
	case f > 0:
		return "Infinity", nil
	default:
		return "-Infinity", nil
	}
}

func encodeSeq(path []string, items []ir.Value, opts Options) (any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		elem, err := encode(append(path, fmt.Sprint(i)), item, opts)
		if err != nil {
			return nil, err
		}
		out[i] = elem
	}
	return out, nil
}

// encodeMap writes text-keyed maps as objects. In table mode a map with any
// other key type becomes an array of [key, value] pairs.
func encodeMap(path []string, m ir.Map, opts Options) (any, error) {
	if len(m) == 0 {
		return map[string]any{}, nil
	}
	if m.TextKeys() {
		out := make(map[string]any, len(m))
		for _, e := range m {
			k := string(e.Key.(ir.Text))
			elem, err := encode(append(path, k), e.Value, opts)
			if err != nil {
				return nil, err
			}
			out[k] = elem
		}
		return out, nil
	}
	if opts.Mode != ModeTable {
		return nil, codecErr(path, errNonTextKey)
	}
	pairs := make([]any, len(m))
	for i, e := range m {
		k, err := encode(path, e.Key, opts)
		if err != nil {
			return nil, err
		}
		val, err := encode(path, e.Value, opts)
		if err != nil {
			return nil, err
		}
		pairs[i] = []any{k, val}
	}
	return pairs, nil
}

func encodeVector(vec scalar.Vector, opts Options) any {
	if opts.BinaryEncodeVectors {
		return map[string]any{KeyBinary: scalar.EncodeBinary(vec.Bytes())}
	}
	out := make([]any, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}

// vectorOf accepts a Vector or a list made only of numbers.
func vectorOf(v ir.Value) (scalar.Vector, bool) {
	switch val := v.(type) {
	case ir.Vector:
		return scalar.Vector(val), true
	case ir.List:
		fs := make([]float64, len(val))
		for i, item := range val {
			switch n := item.(type) {
			case ir.Float:
				fs[i] = float64(n)
			case ir.Int:
				fs[i] = float64(n)
			default:
				return nil, false
			}
		}
		return scalar.VectorFromFloat64s(fs), true
	}
	return nil, false
}
