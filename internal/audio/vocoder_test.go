package audio

import (
	"context"
	"errors"
	"math"
	"testing"
)

func melFrames(n, bins int) [][]float32 {
	frames := make([][]float32, n)
	for i := range frames {
		frames[i] = make([]float32, bins)
		for b := range frames[i] {
			frames[i][b] = float32(math.Sin(float64(i*bins+b))) * 2
		}
	}

	return frames
}

func TestSineVocoderRejectsEmpty(t *testing.T) {
	_, err := NewSineVocoder().Render(context.Background(), nil)
	if !errors.Is(err, ErrEmptyFrames) {
		t.Fatalf("err = %v, want ErrEmptyFrames", err)
	}
}

func TestSineVocoderLengthAndRange(t *testing.T) {
	v := NewSineVocoder()

	out, err := v.Render(context.Background(), melFrames(10, 80))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if len(out) != 10*v.HopLength {
		t.Fatalf("len = %d, want %d", len(out), 10*v.HopLength)
	}

	if peak := peakOf(out); peak == 0 || peak >= 1 {
		t.Fatalf("peak = %f, want in (0, 1)", peak)
	}
}

func TestSineVocoderDeterministic(t *testing.T) {
	frames := melFrames(6, 16)

	a, _ := NewSineVocoder().Render(context.Background(), frames)
	b, _ := NewSineVocoder().Render(context.Background(), frames)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSineVocoderRejectsMalformedFrames(t *testing.T) {
	v := NewSineVocoder()

	if _, err := v.Render(context.Background(), [][]float32{{1, 2}, {1}}); err == nil {
		t.Fatal("expected ragged frame error")
	}

	nan := float32(math.NaN())
	if _, err := v.Render(context.Background(), [][]float32{{1, nan}}); err == nil {
		t.Fatal("expected non-finite frame error")
	}
}

func TestSineVocoderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSineVocoder().Render(ctx, melFrames(4, 8)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestMelCentersIncreasing(t *testing.T) {
	c := MelCenters(80, 0, 8000)
	for i := 1; i < len(c); i++ {
		if c[i] <= c[i-1] {
			t.Fatalf("centre %d not increasing: %f <= %f", i, c[i], c[i-1])
		}
	}

	if c[0] <= 0 || c[len(c)-1] >= 8000 {
		t.Fatalf("centres out of range: %f..%f", c[0], c[len(c)-1])
	}
}
