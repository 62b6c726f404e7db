package tensor

import "math"

// equalF32 compares element-wise; tol 0 demands bit-for-bit equality.
func equalF32(a, b []float32, tol float64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if d := math.Abs(float64(a[i] - b[i])); d > tol || (tol == 0 && a[i] != b[i]) {
			return false
		}
	}

	return true
}

func filled(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}

	return out
}
