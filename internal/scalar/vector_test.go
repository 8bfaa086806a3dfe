package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_BinaryRoundTrip(t *testing.T) {
	source := []float64{0.1, -0.2, 3.14159265358979, 1e-3, 12345.678, 0}
	v := VectorFromFloat64s(source)

	decoded, err := VectorFromBytes(v.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded, len(source))
	for i := range source {
		assert.Less(t, math.Abs(float64(decoded[i])-source[i]), 1e-5*math.Max(1, math.Abs(source[i])))
		assert.Equal(t, math.Float32bits(v[i]), math.Float32bits(decoded[i]))
	}
}

func TestVector_BigEndianLayout(t *testing.T) {
	v := Vector{1.0, -2.0}
	assert.Equal(t, []byte{0x3f, 0x80, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x00}, v.Bytes())
	assert.Equal(t, "P4AAAMAAAAA=", EncodeBinary(v.Bytes()))
}

func TestVectorFromBytes_RejectsBadLength(t *testing.T) {
	_, err := VectorFromBytes([]byte{1, 2, 3})
	assert.True(t, IsParseError(err, KindVector))
}

func TestDecodeBinary(t *testing.T) {
	b, err := DecodeBinary("P4AAAMAAAAA=")
	require.NoError(t, err)
	assert.Len(t, b, 8)

	_, err = DecodeBinary("not base64!")
	assert.True(t, IsParseError(err, KindBinary))
}

func TestObjectID(t *testing.T) {
	id, err := ParseObjectID("65A1B2C3D4E5F60718293A4B")
	require.NoError(t, err)
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", id.String())

	_, err = ParseObjectID("65a1b2c3")
	assert.True(t, IsParseError(err, KindObjectID))
	_, err = ParseObjectID("zza1b2c3d4e5f60718293a4b")
	assert.True(t, IsParseError(err, KindObjectID))

	a, b := NewObjectID(), NewObjectID()
	assert.NotEqual(t, a, b)
	parsed, err := ParseObjectID(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseUUID(t *testing.T) {
	u, err := ParseUUID("1ef2e42c-1fdb-6ad6-aae4-e84679831739")
	require.NoError(t, err)
	assert.Equal(t, "1ef2e42c-1fdb-6ad6-aae4-e84679831739", u.String())

	_, err = ParseUUID("nope")
	assert.True(t, IsParseError(err, KindUUID))
}
