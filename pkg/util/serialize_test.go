package util

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_bufferSerialize(t *testing.T) {
	serial := NewBufferSerialize(0)
	require.NoError(t, Write[int64](-42, serial))
	require.NoError(t, Write[float64](0.5, serial))
	require.NoError(t, Write[bool](true, serial))
	require.NoError(t, WriteString("kind", serial))
	require.NoError(t, WriteString("", serial))
	require.NoError(t, WriteBytes([]byte{1, 2, 3}, serial))
	require.NoError(t, serial.Close())

	deserial := NewBufferDeserialize(serial.Bytes())
	var i64 int64
	var f64 float64
	var b bool
	require.NoError(t, Read[int64](&i64, deserial))
	require.NoError(t, Read[float64](&f64, deserial))
	require.NoError(t, Read[bool](&b, deserial))
	s, err := ReadString(deserial)
	require.NoError(t, err)
	empty, err := ReadString(deserial)
	require.NoError(t, err)
	data, err := ReadBytes(deserial)
	require.NoError(t, err)

	assert.Equal(t, int64(-42), i64)
	assert.Equal(t, 0.5, f64)
	assert.True(t, b)
	assert.Equal(t, "kind", s)
	assert.Equal(t, "", empty)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, 0, deserial.Remaining())

	assert.ErrorIs(t, Read[int64](&i64, deserial), io.ErrUnexpectedEOF)
}

func Test_bufferSerializeReset(t *testing.T) {
	serial := NewBufferSerialize(8)
	require.NoError(t, Write[int32](1, serial))
	serial.Reset()
	assert.Empty(t, serial.Bytes())
	require.NoError(t, Write[int32](7, serial))
	assert.Len(t, serial.Bytes(), 4)
}
