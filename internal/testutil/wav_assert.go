package testutil

import (
	"bytes"
	"math"
	"testing"

	"github.com/example/go-voicetech-tts/internal/audio"
)

// AssertValidWAV decodes data and fails unless it is a mono 16-bit PCM WAV
// at sampleRate holding at least one sample, every one within [-1, 1]. The
// decoded clip is returned for further checks.
func AssertValidWAV(tb testing.TB, data []byte, sampleRate int) audio.Clip {
	tb.Helper()

	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		tb.Fatalf("WAV: missing RIFF/WAVE header (%d bytes)", len(data))
	}

	clip, err := audio.DecodeWAV(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}

	if clip.SampleRate != sampleRate {
		tb.Fatalf("WAV: sample rate %d, want %d", clip.SampleRate, sampleRate)
	}

	if len(clip.Samples) == 0 {
		tb.Fatal("WAV: no samples")
	}

	for i, s := range clip.Samples {
		if math.IsNaN(float64(s)) || s < -1 || s > 1 {
			tb.Fatalf("WAV: sample %d = %v outside [-1, 1]", i, s)
		}
	}

	return clip
}

// AssertWAVDurationApprox fails unless the decoded duration of data lies in
// [minSec, maxSec].
func AssertWAVDurationApprox(tb testing.TB, data []byte, sampleRate int, minSec, maxSec float64) {
	tb.Helper()

	clip := AssertValidWAV(tb, data, sampleRate)

	if d := clip.Duration().Seconds(); d < minSec || d > maxSec {
		tb.Fatalf("WAV duration %.3fs outside [%.3fs, %.3fs]", d, minSec, maxSec)
	}
}
