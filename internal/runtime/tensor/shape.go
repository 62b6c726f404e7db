package tensor

import (
	"fmt"
	"math"
)

// shapeElemCount returns the number of elements a shape holds, rejecting
// negative dimensions and products that overflow int.
func shapeElemCount(shape []int64) (int, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: shape %v has negative dimension at %d", shape, i)
		}

		if d != 0 && total > math.MaxInt/d {
			return 0, fmt.Errorf("tensor: shape %v too large", shape)
		}

		total *= d
	}

	return int(total), nil
}

// normalizeDim resolves a possibly negative axis index against rank.
func normalizeDim(dim, rank int) (int, error) {
	orig := dim
	if dim < 0 {
		dim += rank
	}

	if dim < 0 || dim >= rank {
		return 0, fmt.Errorf("dim %d out of range for rank %d", orig, rank)
	}

	return dim, nil
}
