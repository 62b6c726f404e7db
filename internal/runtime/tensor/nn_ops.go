package tensor

import (
	"errors"
	"fmt"
	"math"
)

// SoftmaxInPlace replaces v with its softmax. The maximum is subtracted
// first so large logits do not overflow.
func SoftmaxInPlace(v []float32) error {
	if len(v) == 0 {
		return errors.New("tensor: softmax of empty vector")
	}

	peak := v[0]
	for _, x := range v[1:] {
		peak = max(peak, x)
	}

	var sum float64

	for i, x := range v {
		e := math.Exp(float64(x - peak))
		v[i] = float32(e)
		sum += e
	}

	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return fmt.Errorf("tensor: softmax normalizer is %v", sum)
	}

	inv := float32(1 / sum)
	for i := range v {
		v[i] *= inv
	}

	return nil
}

// Linear applies y = x * W^T + b where weight shape is [out, in].
// Rows are independent, so the result for a row does not depend on how many
// rows are passed together.
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if x == nil || weight == nil {
		return nil, errors.New("tensor: linear requires non-nil x and weight")
	}

	if x.Rank() < 1 {
		return nil, errors.New("tensor: linear requires x rank >= 1")
	}

	if weight.Rank() != 2 {
		return nil, fmt.Errorf("tensor: linear weight must be rank 2, got %d", weight.Rank())
	}

	in := x.shape[x.Rank()-1]

	out := weight.shape[0]
	if weight.shape[1] != in {
		return nil, fmt.Errorf("tensor: linear mismatch: x last dim %d, weight in dim %d", in, weight.shape[1])
	}

	if bias != nil {
		if bias.Rank() != 1 || bias.shape[0] != out {
			return nil, fmt.Errorf("tensor: linear bias shape %v does not match out dim %d", bias.shape, out)
		}
	}

	batch := len(x.data) / int(in)
	outData := make([]float32, batch*int(out))
	inI := int(in)
	outI := int(out)
	wData := weight.data

	parallelFor(batch*outI, getWorkers(), func(lo, hi int) {
		for idx := lo; idx < hi; idx++ {
			bIdx, o := idx/outI, idx%outI
			sum := Dot(x.data[bIdx*inI:(bIdx+1)*inI], wData[o*inI:(o+1)*inI])
			if bias != nil {
				sum += bias.data[o]
			}

			outData[idx] = sum
		}
	})

	outShape := make([]int64, x.Rank())
	copy(outShape, x.shape[:x.Rank()-1])
	outShape[x.Rank()-1] = out

	return newOwned(outData, outShape), nil
}

// MatVec computes m · v for a rank-2 m of shape [rows, len(v)].
func MatVec(m *Tensor, v []float32) ([]float32, error) {
	if m == nil || m.Rank() != 2 {
		return nil, errors.New("tensor: matvec requires a rank-2 matrix")
	}

	rows, cols := int(m.shape[0]), int(m.shape[1])
	if cols != len(v) {
		return nil, fmt.Errorf("tensor: matvec mismatch: matrix %v, vector length %d", m.shape, len(v))
	}

	out := make([]float32, rows)
	for r := range rows {
		out[r] = Dot(m.data[r*cols:(r+1)*cols], v)
	}

	return out, nil
}

// MeanRows averages a [rows, width] tensor over its first axis.
func MeanRows(x *Tensor) ([]float32, error) {
	if x == nil || x.Rank() != 2 {
		return nil, errors.New("tensor: mean rows requires a rank-2 tensor")
	}

	rows, width := int(x.shape[0]), int(x.shape[1])
	if rows == 0 {
		return nil, errors.New("tensor: mean rows over empty tensor")
	}

	acc := make([]float64, width)
	for r := range rows {
		for c, v := range x.data[r*width : (r+1)*width] {
			acc[c] += float64(v)
		}
	}

	out := make([]float32, width)
	for c := range acc {
		out[c] = float32(acc[c] / float64(rows))
	}

	return out, nil
}

// ReLU clamps negative values to zero in place.
func ReLU(v []float32) {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
}

// Sigmoid returns the logistic function of x.
func Sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

// Tanh returns the hyperbolic tangent of x.
func Tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// AllFinite reports whether v contains no NaN or Inf and, if not, the index
// of the first offending element.
func AllFinite(v []float32) (bool, int) {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false, i
		}
	}

	return true, -1
}
