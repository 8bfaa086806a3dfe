package scalar

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Vector is an ordered sequence of float32 components.
type Vector []float32

// Bytes packs the components as big-endian IEEE-754 float32.
func (v Vector) Bytes() []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.BigEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

// VectorFromBytes is the inverse of Vector.Bytes.
func VectorFromBytes(b []byte) (Vector, error) {
	if len(b)%4 != 0 {
		return nil, &ParseError{Kind: KindVector, Reason: "packed vector length must be a multiple of four bytes"}
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// VectorFromFloat64s narrows each component to float32.
func VectorFromFloat64s(fs []float64) Vector {
	v := make(Vector, len(fs))
	for i, f := range fs {
		v[i] = float32(f)
	}
	return v
}

// Float64s widens each component.
func (v Vector) Float64s() []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// EncodeBinary returns the standard base64 text carried by {"$binary": ...}.
func EncodeBinary(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBinary parses the text of a {"$binary": ...} wrapper.
func DecodeBinary(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, parseErr(KindBinary, s, "invalid base64: %v", err)
	}
	return b, nil
}
