package audio

import (
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	goaudio "github.com/go-audio/audio"
)

const wavFormatPCM = 1

// WriteWAV streams c as mono 16-bit PCM. The encoder seeks back to patch
// the RIFF header on close, hence io.WriteSeeker.
func WriteWAV(w io.WriteSeeker, c Clip) error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", c.SampleRate)
	}

	enc := wav.NewEncoder(w, c.SampleRate, BitDepth, Channels, wavFormatPCM)

	err := enc.Write(&goaudio.Float32Buffer{
		Data:           c.Samples,
		Format:         &goaudio.Format{SampleRate: c.SampleRate, NumChannels: Channels},
		SourceBitDepth: BitDepth,
	})
	if err != nil {
		return fmt.Errorf("audio: write PCM: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finish WAV: %w", err)
	}

	return nil
}

// EncodeWAV renders samples to an in-memory WAV file. Samples outside
// [-1, 1] are clipped.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	var f memFile
	if err := WriteWAV(&f, Clip{Samples: samples, SampleRate: sampleRate}); err != nil {
		return nil, err
	}

	return f.data, nil
}

// memFile is a growable byte slice with a file cursor.
type memFile struct {
	data []byte
	off  int64
}

func (f *memFile) Write(p []byte) (int, error) {
	end := f.off + int64(len(p))
	if end > int64(len(f.data)) {
		f.data = append(f.data, make([]byte, end-int64(len(f.data)))...)
	}

	copy(f.data[f.off:end], p)
	f.off = end

	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	base := int64(0)

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.off
	case io.SeekEnd:
		base = int64(len(f.data))
	default:
		return 0, fmt.Errorf("audio: bad whence %d", whence)
	}

	if base+offset < 0 {
		return 0, errors.New("audio: seek before start of buffer")
	}

	f.off = base + offset

	return f.off, nil
}
