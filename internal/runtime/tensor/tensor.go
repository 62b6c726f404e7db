// Package tensor implements the dense float32 tensors and kernels used by the
// pure-Go acoustic model.
package tensor

import (
	"errors"
	"fmt"
)

// Tensor is a dense, row-major float32 tensor.
type Tensor struct {
	shape []int64
	data  []float32
}

// New creates a tensor from data and shape. Both slices are copied.
func New(data []float32, shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	s := append([]int64(nil), shape...)
	d := append([]float32(nil), data...)

	return &Tensor{shape: s, data: d}, nil
}

// newOwned creates a Tensor taking ownership of the provided data and shape
// slices without copying. len(data) must equal the product of shape.
func newOwned(data []float32, shape []int64) *Tensor {
	return &Tensor{shape: shape, data: data}
}

// Zeros creates a zero-initialized tensor.
func Zeros(shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

// FromRows stacks equal-width rows into a [len(rows), width] tensor.
func FromRows(rows [][]float32) (*Tensor, error) {
	if len(rows) == 0 {
		return nil, errors.New("tensor: from rows requires at least one row")
	}

	width := len(rows[0])
	data := make([]float32, 0, len(rows)*width)

	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("tensor: row %d has width %d, want %d", i, len(r), width)
		}

		data = append(data, r...)
	}

	return newOwned(data, []int64{int64(len(rows)), int64(width)}), nil
}

// Vector wraps a copy of v as a rank-1 tensor.
func Vector(v []float32) *Tensor {
	return newOwned(append([]float32(nil), v...), []int64{int64(len(v))})
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Dim returns the size of dimension i, supporting negative indices.
func (t *Tensor) Dim(i int) int64 {
	if t == nil {
		return 0
	}

	d, err := normalizeDim(i, len(t.shape))
	if err != nil {
		return 0
	}

	return t.shape[d]
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Row returns a read-only view of row i of a rank-2 tensor.
func (t *Tensor) Row(i int) ([]float32, error) {
	if t == nil || len(t.shape) != 2 {
		return nil, errors.New("tensor: row requires a rank-2 tensor")
	}

	rows, width := int(t.shape[0]), int(t.shape[1])
	if i < 0 || i >= rows {
		return nil, fmt.Errorf("tensor: row %d out of range [0,%d)", i, rows)
	}

	return t.data[i*width : (i+1)*width], nil
}
