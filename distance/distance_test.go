package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{5}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquaredL2(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestHamming(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []byte
		expected float32
	}{
		{"Simple", []byte{0xFF, 0x00}, []byte{0x00, 0xFF}, 16},
		{"Identical", []byte{0xAA, 0x55}, []byte{0xAA, 0x55}, 0},
		{"Partial", []byte{0b11110000}, []byte{0b11111111}, 4},
		{"Empty", []byte{}, []byte{}, 0},
		// Long enough to exercise the 64-bit fast path plus the tail.
		{"Long", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, make([]byte, 9), 68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hamming(tt.a, tt.b)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFor(t *testing.T) {
	t.Run("Float32", func(t *testing.T) {
		f, err := For[float32]()
		require.NoError(t, err)
		assert.InDelta(t, float32(27), f([]float32{1, 2, 3}, []float32{4, 5, 6}), 1e-5)
	})

	t.Run("Uint8", func(t *testing.T) {
		f, err := For[uint8]()
		require.NoError(t, err)
		assert.Equal(t, float32(4), f([]byte{0b11110000}, []byte{0b11111111}))
	})
}
