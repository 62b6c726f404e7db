package tensor

import (
	"errors"
	"fmt"
)

// Rows copies the selected rows of a rank-2 table into a new
// [len(ids), width] tensor. Ids may repeat.
func (t *Tensor) Rows(ids []int64) (*Tensor, error) {
	if t == nil || len(t.shape) != 2 {
		return nil, errors.New("tensor: rows requires a rank-2 table")
	}

	if len(ids) == 0 {
		return nil, errors.New("tensor: rows requires at least one id")
	}

	count, width := t.shape[0], int(t.shape[1])
	data := make([]float32, 0, len(ids)*width)

	for i, id := range ids {
		if id < 0 || id >= count {
			return nil, fmt.Errorf("tensor: row id %d at position %d out of range [0,%d)", id, i, count)
		}

		data = append(data, t.data[int(id)*width:(int(id)+1)*width]...)
	}

	return newOwned(data, []int64{int64(len(ids)), int64(width)}), nil
}

// ConcatVectors joins plain float32 slices end to end.
func ConcatVectors(parts ...[]float32) []float32 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}

	out := make([]float32, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}
