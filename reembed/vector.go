package reembed

import (
	"fmt"
	"math"

	"github.com/poiesic/hybridrag/core"
)

// unitVectors checks that a batch of embeddings shares one dimensionality
// and holds only finite values, and returns them scaled to unit length
// along with that dimensionality. Zero vectors stay zero.
func unitVectors(embeddings [][]float32) ([][]float32, int, error) {
	dims := 0
	out := make([][]float32, len(embeddings))
	for i, v := range embeddings {
		if len(v) == 0 {
			return nil, 0, fmt.Errorf("%w: vector %d is empty", core.ErrDimensionMismatch, i)
		}
		if dims == 0 {
			dims = len(v)
		} else if len(v) != dims {
			return nil, 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				core.ErrDimensionMismatch, i, len(v), dims)
		}

		var sum float64
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, 0, fmt.Errorf("%w: vector %d has a non-finite component", ErrInvalidVector, i)
			}
			sum += f * f
		}

		unit := make([]float32, len(v))
		if sum > 0 {
			norm := math.Sqrt(sum)
			for j, x := range v {
				unit[j] = float32(float64(x) / norm)
			}
		}
		out[i] = unit
	}
	return out, dims, nil
}
