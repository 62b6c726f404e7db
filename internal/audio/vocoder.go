package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrEmptyFrames is returned when a vocoder is handed no frames. An empty
// sequence is never rendered as silence.
var ErrEmptyFrames = errors.New("audio: empty frame sequence")

// Vocoder turns an ordered sequence of mel frames into PCM samples.
type Vocoder interface {
	Render(ctx context.Context, frames [][]float32) ([]float32, error)
	SampleRate() int
}

// SineVocoder is a deterministic additive synthesizer. Each mel band drives
// a sine oscillator at the band's centre frequency; frame values are read as
// log amplitudes and interpolated linearly across a hop.
type SineVocoder struct {
	Rate      int
	HopLength int
	FMin      float64
	FMax      float64
}

// NewSineVocoder returns a vocoder at 22050 Hz with a 256-sample hop.
func NewSineVocoder() *SineVocoder {
	return &SineVocoder{Rate: DefaultSampleRate, HopLength: 256, FMin: 0, FMax: 8000}
}

func (v *SineVocoder) SampleRate() int { return v.Rate }

// Render implements Vocoder.
func (v *SineVocoder) Render(ctx context.Context, frames [][]float32) ([]float32, error) {
	if len(frames) == 0 {
		return nil, ErrEmptyFrames
	}

	if v.Rate <= 0 || v.HopLength <= 0 {
		return nil, fmt.Errorf("audio: invalid vocoder rate %d or hop %d", v.Rate, v.HopLength)
	}

	bins := len(frames[0])
	if bins == 0 {
		return nil, errors.New("audio: frames have no mel bins")
	}

	for i, f := range frames {
		if len(f) != bins {
			return nil, fmt.Errorf("audio: frame %d has %d bins, want %d", i, len(f), bins)
		}

		for j, x := range f {
			if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
				return nil, fmt.Errorf("audio: frame %d bin %d is not finite", i, j)
			}
		}
	}

	fmax := v.FMax
	if nyq := float64(v.Rate) / 2; fmax <= 0 || fmax > nyq {
		fmax = nyq
	}

	incs := make([]float64, bins)
	for b, hz := range MelCenters(bins, v.FMin, fmax) {
		incs[b] = 2 * math.Pi * hz / float64(v.Rate)
	}

	phase := make([]float64, bins)
	out := make([]float32, len(frames)*v.HopLength)

	prev := bandAmplitudes(frames[0])

	for i := range frames {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cur := bandAmplitudes(frames[i])
		base := i * v.HopLength

		for n := range v.HopLength {
			t := float64(n) / float64(v.HopLength)

			var s float64

			for b := range bins {
				a := prev[b] + (cur[b]-prev[b])*t
				s += a * math.Sin(phase[b])

				phase[b] += incs[b]
				if phase[b] > 2*math.Pi {
					phase[b] -= 2 * math.Pi
				}
			}

			out[base+n] = float32(s)
		}

		prev = cur
	}

	return out, nil
}

// bandAmplitudes maps a log-mel frame to per-band amplitudes that sum to the
// frame loudness, which stays in (0, 1).
func bandAmplitudes(frame []float32) []float64 {
	amps := make([]float64, len(frame))

	maxV := math.Inf(-1)
	var mean float64

	for _, x := range frame {
		maxV = math.Max(maxV, float64(x))
		mean += float64(x)
	}

	mean /= float64(len(frame))

	var sum float64

	for i, x := range frame {
		amps[i] = math.Exp(float64(x) - maxV)
		sum += amps[i]
	}

	loud := 0.9 / (1 + math.Exp(-mean))
	for i := range amps {
		amps[i] *= loud / sum
	}

	return amps
}

// MelCenters returns the centre frequencies in Hz of n triangular mel
// filters spanning [fmin, fmax] on the HTK mel scale.
func MelCenters(n int, fmin, fmax float64) []float64 {
	lo, hi := hzToMel(fmin), hzToMel(fmax)
	out := make([]float64, n)

	for i := range out {
		out[i] = melToHz(lo + (hi-lo)*float64(i+1)/float64(n+1))
	}

	return out
}

func hzToMel(hz float64) float64  { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }
