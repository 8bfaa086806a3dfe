package doccodec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/scalar"
)

// Postprocess converts a wire tree back into a domain value. Maps whose key
// set is exactly one of the reserved singletons are decoded as scalars and
// not recursed into. In table mode with column hints, top-level fields of a
// row are decoded by their declared column type.
func Postprocess(wire any, opts Options) (ir.Value, error) {
	if row, ok := wire.(map[string]any); ok && opts.Mode == ModeTable && len(opts.Columns) > 0 {
		return decodeRow(row, opts)
	}
	return decode(nil, wire, opts)
}

// PostprocessDocuments decodes every element of a documents array.
func PostprocessDocuments(docs []any, opts Options) ([]ir.Value, error) {
	out := make([]ir.Value, len(docs))
	for i, d := range docs {
		v, err := Postprocess(d, opts)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decode(path []string, wire any, opts Options) (ir.Value, error) {
	if isVectorPosition(path) {
		if vec, ok, err := decodeVector(wire); ok || err != nil {
			if err != nil {
				return nil, codecErr(path, err)
			}
			return ir.Vector(vec), nil
		}
	}

	switch val := wire.(type) {
	case nil:
		return ir.Null{}, nil
	case string:
		return ir.Text(val), nil
	case bool:
		return ir.Bool(val), nil
	case json.Number, float64, float32, int, int64:
		v, err := decodeNumber(val)
		if err != nil {
			return nil, codecErr(path, err)
		}
		return v, nil
	case []any:
		list := make(ir.List, len(val))
		for i, item := range val {
			v, err := decode(append(path, strconv.Itoa(i)), item, opts)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case map[string]any:
		if len(val) == 1 {
			if v, ok, err := decodeReserved(val); ok || err != nil {
				if err != nil {
					return nil, codecErr(path, err)
				}
				return v, nil
			}
		}
		doc := make(ir.Document, len(val))
		for k, item := range val {
			v, err := decode(append(path, k), item, opts)
			if err != nil {
				return nil, err
			}
			doc[k] = v
		}
		return doc, nil
	}
	return nil, codecErr(path, fmt.Errorf("unsupported wire type %T", wire))
}

// decodeReserved handles a singleton map. ok is false when the key is not
// reserved.
func decodeReserved(m map[string]any) (ir.Value, bool, error) {
	for k, raw := range m {
		switch k {
		case KeyDate:
			ms, err := int64Of(raw)
			if err != nil {
				return nil, true, fmt.Errorf("%s: %w", KeyDate, err)
			}
			return ir.Timestamp(ms), true, nil
		case KeyUUID:
			s, ok := raw.(string)
			if !ok {
				return nil, true, fmt.Errorf("%s: expected string, got %T", KeyUUID, raw)
			}
			u, err := scalar.ParseUUID(s)
			if err != nil {
				return nil, true, err
			}
			return ir.UUID(u), true, nil
		case KeyObjectID:
			s, ok := raw.(string)
			if !ok {
				return nil, true, fmt.Errorf("%s: expected string, got %T", KeyObjectID, raw)
			}
			id, err := scalar.ParseObjectID(s)
			if err != nil {
				return nil, true, err
			}
			return ir.ObjectID(id), true, nil
		case KeyBinary:
			b, err := binaryOf(raw)
			if err != nil {
				return nil, true, err
			}
			return ir.Binary(b), true, nil
		}
	}
	return nil, false, nil
}

// decodeVector accepts a numeric array or a {"$binary": ...} wrapper.
func decodeVector(wire any) (scalar.Vector, bool, error) {
	switch val := wire.(type) {
	case []any:
		fs := make([]float64, len(val))
		for i, item := range val {
			f, err := float64Of(item)
			if err != nil {
				return nil, false, nil
			}
			fs[i] = f
		}
		return scalar.VectorFromFloat64s(fs), true, nil
	case map[string]any:
		raw, ok := val[KeyBinary]
		if !ok || len(val) != 1 {
			return nil, false, nil
		}
		b, err := binaryOf(raw)
		if err != nil {
			return nil, true, err
		}
		vec, err := scalar.VectorFromBytes(b)
		return vec, true, err
	}
	return nil, false, nil
}

func binaryOf(raw any) ([]byte, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%s: expected string, got %T", KeyBinary, raw)
	}
	return scalar.DecodeBinary(s)
}

func decodeNumber(raw any) (ir.Value, error) {
	switch n := raw.(type) {
	case json.Number:
		return ir.From(n)
	case float64:
		return ir.Float(n), nil
	case float32:
		return ir.Float(n), nil
	case int:
		return ir.Int(n), nil
	case int64:
		return ir.Int(n), nil
	}
	return nil, fmt.Errorf("expected number, got %T", raw)
}

func int64Of(raw any) (int64, error) {
	v, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case ir.Int:
		return int64(n), nil
	case ir.Float:
		f := float64(n)
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
			return 0, fmt.Errorf("expected integer milliseconds, got %v", f)
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", ir.TypeName(v))
}

func float64Of(raw any) (float64, error) {
	v, err := decodeNumber(raw)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case ir.Int:
		return float64(n), nil
	case ir.Float:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %s", ir.TypeName(v))
}
