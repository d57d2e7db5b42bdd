package reembed

import (
	"math"
	"testing"

	"github.com/poiesic/hybridrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitVectors(t *testing.T) {
	inv := float32(1 / math.Sqrt(2))
	tests := []struct {
		name     string
		input    [][]float32
		expected [][]float32
		dims     int
	}{
		{"already unit", [][]float32{{1, 0, 0}}, [][]float32{{1, 0, 0}}, 3},
		{"scaled", [][]float32{{3, 4}, {0, 2}}, [][]float32{{0.6, 0.8}, {0, 1}}, 2},
		{"negative components", [][]float32{{-1, 1}}, [][]float32{{-inv, inv}}, 2},
		{"zero vector stays zero", [][]float32{{0, 0}, {1, 0}}, [][]float32{{0, 0}, {1, 0}}, 2},
		{"empty batch", nil, [][]float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dims, err := unitVectors(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.dims, dims)
			require.Len(t, got, len(tt.expected))
			for i := range got {
				assert.InDeltaSlice(t, tt.expected[i], got[i], 1e-6, "vector %d", i)
			}
		})
	}
}

func TestUnitVectors_DoesNotModifyInput(t *testing.T) {
	input := [][]float32{{3, 4}}
	_, _, err := unitVectors(input)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, input[0])
}

func TestUnitVectors_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		input [][]float32
		err   error
	}{
		{"ragged", [][]float32{{1, 2}, {3}}, core.ErrDimensionMismatch},
		{"empty vector", [][]float32{{}}, core.ErrDimensionMismatch},
		{"NaN", [][]float32{{1, float32(math.NaN())}}, ErrInvalidVector},
		{"infinity", [][]float32{{float32(math.Inf(1)), 0}}, ErrInvalidVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := unitVectors(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
