package doccodec

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects between the collection and the table wire conventions.
type Mode int

const (
	// ModeCollection writes dates, timestamps, UUIDs and object ids as
	// extended-JSON wrappers.
	ModeCollection Mode = iota
	// ModeTable writes them as plain strings and allows maps with non-text
	// keys (as arrays of pairs).
	ModeTable
)

// ColumnType names a table column type as reported by the server.
type ColumnType string

const (
	ColumnText      ColumnType = "text"
	ColumnInt       ColumnType = "int"
	ColumnBigint    ColumnType = "bigint"
	ColumnFloat     ColumnType = "float"
	ColumnDouble    ColumnType = "double"
	ColumnBoolean   ColumnType = "boolean"
	ColumnDate      ColumnType = "date"
	ColumnTime      ColumnType = "time"
	ColumnTimestamp ColumnType = "timestamp"
	ColumnDuration  ColumnType = "duration"
	ColumnUUID      ColumnType = "uuid"
	ColumnBlob      ColumnType = "blob"
	ColumnVector    ColumnType = "vector"
	ColumnList      ColumnType = "list"
	ColumnSet       ColumnType = "set"
	ColumnMap       ColumnType = "map"
)

// Column is a read-only column type hint. KeyType and ValueType apply to
// maps, sets and lists.
type Column struct {
	Type      ColumnType
	KeyType   ColumnType
	ValueType ColumnType
}

// Options control both directions of the codec.
type Options struct {
	// BinaryEncodeVectors packs vectors as {"$binary": ...} on writes.
	BinaryEncodeVectors bool
	Mode                Mode
	// Columns, in table mode, drive the decoding of top-level row fields.
	Columns map[string]Column
}

// Error reports a codec failure at a document path.
type Error struct {
	Path []string
	Err  error
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("codec: %v", e.Err)
	}
	return fmt.Sprintf("codec at %q: %v", strings.Join(e.Path, "."), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCodecError reports whether err came from the document codec.
func IsCodecError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func codecErr(path []string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Path: append([]string(nil), path...), Err: err}
}

// ColumnsFromSchema reads a table projection schema as found in
// status.projectionSchema: {"col": {"type": "map", "keyType": "int", ...}}.
func ColumnsFromSchema(schema any) (map[string]Column, error) {
	if schema == nil {
		return nil, nil
	}
	m, ok := schema.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("projection schema is %T, not an object", schema)
	}
	cols := make(map[string]Column, len(m))
	for name, raw := range m {
		desc, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("column %q: descriptor is %T, not an object", name, raw)
		}
		col := Column{}
		if t, ok := desc["type"].(string); ok {
			col.Type = ColumnType(t)
		}
		if t, ok := desc["keyType"].(string); ok {
			col.KeyType = ColumnType(t)
		}
		if t, ok := desc["valueType"].(string); ok {
			col.ValueType = ColumnType(t)
		}
		cols[name] = col
	}
	return cols, nil
}
