package audio

import "math"

// PeakNormalize scales samples in place so the peak amplitude reaches target.
// Silent input is returned unchanged.
func PeakNormalize(samples []float32, target float32) []float32 {
	var peak float32

	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}

	if peak == 0 || target <= 0 {
		return samples
	}

	g := target / peak
	for i := range samples {
		samples[i] *= g
	}

	return samples
}

// DCBlock removes DC offset in place with a one-pole high-pass filter whose
// corner sits near 20 Hz.
func DCBlock(samples []float32, sampleRate int) []float32 {
	if len(samples) == 0 || sampleRate <= 0 {
		return samples
	}

	r := 1 - 2*math.Pi*20/float64(sampleRate)
	if r < 0 {
		r = 0
	}

	var x1, y1 float64

	for i, s := range samples {
		x := float64(s)
		y := x - x1 + r*y1
		x1, y1 = x, y
		samples[i] = float32(y)
	}

	return samples
}

// FadeIn applies a linear fade-in ramp over the given duration in milliseconds.
func FadeIn(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampLength(len(samples), sampleRate, ms)
	for i := range n {
		samples[i] *= float32(i) / float32(n)
	}

	return samples
}

// FadeOut applies a linear fade-out ramp over the given duration in milliseconds.
func FadeOut(samples []float32, sampleRate int, ms float64) []float32 {
	n := rampLength(len(samples), sampleRate, ms)
	last := len(samples) - 1

	for i := range n {
		samples[last-i] *= float32(i) / float32(n)
	}

	return samples
}

// Silence returns d milliseconds of zero samples.
func Silence(sampleRate int, ms float64) []float32 {
	return make([]float32, rampLength(math.MaxInt, sampleRate, ms))
}

func rampLength(total, sampleRate int, ms float64) int {
	if sampleRate <= 0 || ms <= 0 {
		return 0
	}

	return min(int(float64(sampleRate)*ms/1000), total)
}
