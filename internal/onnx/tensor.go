package onnx

import (
	"errors"
	"fmt"
	"math"
)

// Tensor is a dense float32 or int64 array exchanged with ONNX Runtime.
type Tensor struct {
	dtype DType
	shape []int64
	f32   []float32
	i64   []int64
}

// Float32Tensor copies data into a tensor of the given shape.
func Float32Tensor(data []float32, shape []int64) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{dtype: Float32, shape: append([]int64(nil), shape...), f32: append([]float32(nil), data...)}, nil
}

// Int64Tensor copies data into a tensor of the given shape.
func Int64Tensor(data []int64, shape []int64) (*Tensor, error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, err
	}

	return &Tensor{dtype: Int64, shape: append([]int64(nil), shape...), i64: append([]int64(nil), data...)}, nil
}

// ZeroTensor builds an all-zero tensor for p. Symbolic dimensions take
// their size from bind and default to 1.
func ZeroTensor(p Port, bind map[string]int64) (*Tensor, error) {
	shape := make([]int64, len(p.Shape))

	for i, d := range p.Shape {
		switch {
		case d.Symbol == "":
			shape[i] = d.Size
		case bind[d.Symbol] > 0:
			shape[i] = bind[d.Symbol]
		default:
			shape[i] = 1
		}
	}

	n, err := elementCount(shape)
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", p.Name, err)
	}

	switch p.DType {
	case Float32:
		return &Tensor{dtype: Float32, shape: shape, f32: make([]float32, n)}, nil
	case Int64:
		return &Tensor{dtype: Int64, shape: shape, i64: make([]int64, n)}, nil
	default:
		return nil, fmt.Errorf("port %q: unsupported dtype %q", p.Name, p.DType)
	}
}

// MelTensor packs decoder frames as [1, bins, frames], or [1, frames, bins]
// when timeMajor is set. Every frame must have the same number of bins.
func MelTensor(frames [][]float32, timeMajor bool) (*Tensor, error) {
	if len(frames) == 0 {
		return nil, errors.New("onnx: no mel frames")
	}

	n, bins := len(frames), len(frames[0])
	if bins == 0 {
		return nil, errors.New("onnx: frames have no mel bins")
	}

	data := make([]float32, n*bins)

	for t, f := range frames {
		if len(f) != bins {
			return nil, fmt.Errorf("onnx: frame %d has %d bins, want %d", t, len(f), bins)
		}

		if timeMajor {
			copy(data[t*bins:], f)
			continue
		}

		for b, x := range f {
			data[b*n+t] = x
		}
	}

	shape := []int64{1, int64(bins), int64(n)}
	if timeMajor {
		shape = []int64{1, int64(n), int64(bins)}
	}

	return &Tensor{dtype: Float32, shape: shape, f32: data}, nil
}

func (t *Tensor) DType() DType { return t.dtype }

func (t *Tensor) Shape() []int64 { return append([]int64(nil), t.shape...) }

// Float32s returns a copy of the elements of a float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	if t == nil {
		return nil, errors.New("onnx: nil tensor")
	}

	if t.dtype != Float32 {
		return nil, fmt.Errorf("onnx: want float32 tensor, got %s", t.dtype)
	}

	return append([]float32(nil), t.f32...), nil
}

// Int64s returns a copy of the elements of an int64 tensor.
func (t *Tensor) Int64s() ([]int64, error) {
	if t == nil {
		return nil, errors.New("onnx: nil tensor")
	}

	if t.dtype != Int64 {
		return nil, fmt.Errorf("onnx: want int64 tensor, got %s", t.dtype)
	}

	return append([]int64(nil), t.i64...), nil
}

func checkShape(shape []int64, n int) error {
	want, err := elementCount(shape)
	if err != nil {
		return err
	}

	if want != n {
		return fmt.Errorf("onnx: shape %v holds %d elements, got %d", shape, want, n)
	}

	return nil
}

func elementCount(shape []int64) (int, error) {
	count := int64(1)

	for i, d := range shape {
		if d < 1 {
			return 0, fmt.Errorf("onnx: shape[%d]=%d is not positive", i, d)
		}

		if count > math.MaxInt/d {
			return 0, fmt.Errorf("onnx: shape %v overflows int", shape)
		}

		count *= d
	}

	return int(count), nil
}
