package tensor

// Dot sums a[i]*b[i] strictly left to right, so the result for a row never
// depends on how work was split across goroutines. len(b) must be at least
// len(a).
func Dot(a, b []float32) float32 {
	var acc float32

	b = b[:len(a)]
	for i, x := range a {
		acc += x * b[i]
	}

	return acc
}
