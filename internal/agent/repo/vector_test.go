package repo

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorBytesLittleEndianFloat32(t *testing.T) {
	vec := []float32{0, 1, -2.5, math.Pi}
	blob := vectorBytes(vec)

	require.Len(t, blob, len(vec)*4)
	for i, want := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		assert.Equal(t, want, math.Float32frombits(bits))
	}
}

func TestVectorBytesEmpty(t *testing.T) {
	assert.Empty(t, vectorBytes(nil))
}
