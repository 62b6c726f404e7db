package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/wav"
)

// Output format of the synthesizer.
const (
	DefaultSampleRate = 22050
	Channels          = 1
	BitDepth          = 16
)

// ErrFormatMismatch is returned when a decoded WAV is not mono 16-bit PCM.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// Clip is decoded PCM audio.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	return Duration(len(c.Samples), c.SampleRate)
}

// Duration converts a sample count to playback time.
func Duration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}

	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// DecodeWAV decodes WAV bytes into float32 PCM. Any sample rate is accepted;
// the file must be mono 16-bit PCM.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, errors.New("empty WAV input")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, errors.New("invalid WAV file")
	}

	if dec.NumChans != Channels {
		return Clip{}, fmt.Errorf("%w: channels %d, want %d", ErrFormatMismatch, dec.NumChans, Channels)
	}

	if dec.BitDepth != BitDepth {
		return Clip{}, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, dec.BitDepth, BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return Clip{Samples: buf.Data, SampleRate: int(dec.SampleRate)}, nil
}
