package doccodec

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/scalar"
)

func decodeRow(row map[string]any, opts Options) (ir.Value, error) {
	doc := make(ir.Document, len(row))
	for name, raw := range row {
		path := []string{name}
		col, ok := opts.Columns[name]
		var (
			v   ir.Value
			err error
		)
		if ok {
			v, err = decodeColumn(path, col.Type, col, raw, opts)
		} else {
			v, err = decode(path, raw, opts)
		}
		if err != nil {
			return nil, err
		}
		doc[name] = v
	}
	return doc, nil
}

// decodeColumn decodes raw as a value of type typ. col carries the key and
// value types of container columns.
func decodeColumn(path []string, typ ColumnType, col Column, raw any, opts Options) (ir.Value, error) {
	if raw == nil {
		return ir.Null{}, nil
	}
	wrap := func(v ir.Value, err error) (ir.Value, error) {
		if err != nil {
			return nil, codecErr(path, err)
		}
		return v, nil
	}

	switch typ {
	case ColumnDate:
		s, err := stringOf(typ, raw)
		if err != nil {
			return wrap(nil, err)
		}
		d, err := scalar.ParseDate(s)
		return wrap(ir.Date(d), err)
	case ColumnTime:
		s, err := stringOf(typ, raw)
		if err != nil {
			return wrap(nil, err)
		}
		t, err := scalar.ParseTime(s)
		return wrap(ir.Time(t), err)
	case ColumnTimestamp:
		s, err := stringOf(typ, raw)
		if err != nil {
			return wrap(nil, err)
		}
		ts, err := scalar.ParseTimestamp(s)
		return wrap(ir.Timestamp(ts), err)
	case ColumnDuration:
		s, err := stringOf(typ, raw)
		if err != nil {
			return wrap(nil, err)
		}
		d, err := scalar.ParseDuration(s)
		return wrap(ir.Duration(d), err)
	case ColumnUUID:
		s, err := stringOf(typ, raw)
		if err != nil {
			return wrap(nil, err)
		}
		u, err := scalar.ParseUUID(s)
		return wrap(ir.UUID(u), err)
	case ColumnBlob:
		m, ok := raw.(map[string]any)
		if !ok || len(m) != 1 {
			return wrap(nil, fmt.Errorf("blob column: expected {%q: ...}, got %T", KeyBinary, raw))
		}
		b, err := binaryOf(m[KeyBinary])
		return wrap(ir.Binary(b), err)
	case ColumnVector:
		vec, ok, err := decodeVector(raw)
		if err == nil && !ok {
			err = fmt.Errorf("vector column: unexpected %T", raw)
		}
		return wrap(ir.Vector(vec), err)
	case ColumnFloat, ColumnDouble:
		if s, ok := raw.(string); ok {
			f, err := nonFinite(s)
			return wrap(ir.Float(f), err)
		}
		f, err := float64Of(raw)
		return wrap(ir.Float(f), err)
	case ColumnList, ColumnSet:
		items, ok := raw.([]any)
		if !ok {
			return wrap(nil, fmt.Errorf("%s column: expected array, got %T", typ, raw))
		}
		out := make([]ir.Value, len(items))
		for i, item := range items {
			v, err := decodeColumn(append(path, fmt.Sprint(i)), col.ValueType, Column{}, item, opts)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		if typ == ColumnSet {
			return ir.Set(out), nil
		}
		return ir.List(out), nil
	case ColumnMap:
		return decodeMapColumn(path, col, raw, opts)
	}
	return decode(path, raw, opts)
}

// decodeMapColumn accepts an object or, for non-text keys, an array of
// [key, value] pairs.
func decodeMapColumn(path []string, col Column, raw any, opts Options) (ir.Value, error) {
	switch val := raw.(type) {
	case map[string]any:
		m := make(ir.Map, 0, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			item := val[k]
			key, err := decodeColumn(path, col.KeyType, Column{}, k, opts)
			if err != nil {
				return nil, err
			}
			v, err := decodeColumn(append(path, k), col.ValueType, Column{}, item, opts)
			if err != nil {
				return nil, err
			}
			m = append(m, ir.MapEntry{Key: key, Value: v})
		}
		return m, nil
	case []any:
		m := make(ir.Map, 0, len(val))
		for i, item := range val {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, codecErr(path, fmt.Errorf("map entry %d: expected [key, value] pair", i))
			}
			key, err := decodeColumn(path, col.KeyType, Column{}, pair[0], opts)
			if err != nil {
				return nil, err
			}
			v, err := decodeColumn(path, col.ValueType, Column{}, pair[1], opts)
			if err != nil {
				return nil, err
			}
			m = append(m, ir.MapEntry{Key: key, Value: v})
		}
		return m, nil
	}
	return nil, codecErr(path, fmt.Errorf("map column: expected object or array, got %T", raw))
}

func stringOf(typ ColumnType, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s column: expected string, got %T", typ, raw)
	}
	return s, nil
}

func nonFinite(s string) (float64, error) {
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("float column: unexpected string %q", s)
}
