package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/go-voicetech-tts/internal/audio"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// VocoderGraph is the manifest name of the mel-to-waveform graph.
const VocoderGraph = "vocoder"

// GraphRunner is the minimal runner contract the vocoder needs. It is
// useful for alternate runtimes and for tests.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// VocoderOptions configures port names and layout. Zero values fall back to
// the graph entry in the manifest: its first input and output, its
// sample_rate and its time_major flag.
type VocoderOptions struct {
	Input      string
	Output     string
	SampleRate int
	// TimeMajor feeds [1, frames, bins] instead of [1, bins, frames].
	TimeMajor bool
}

// Vocoder renders mel frames through an ONNX graph.
type Vocoder struct {
	mu     sync.Mutex
	runner GraphRunner
	opts   VocoderOptions
}

var _ audio.Vocoder = (*Vocoder)(nil)

// NewVocoder opens the "vocoder" graph listed in the manifest at
// manifestPath.
func NewVocoder(manifestPath string, cfg RunnerConfig, opts VocoderOptions) (*Vocoder, error) {
	m, err := LoadGraphs(manifestPath)
	if err != nil {
		return nil, err
	}

	g, ok := m.Graph(VocoderGraph)
	if !ok {
		return nil, fmt.Errorf("onnx: manifest %s has no %q graph", manifestPath, VocoderGraph)
	}

	opts = opts.withGraphDefaults(g)

	runner, err := newGraphRunner(g, cfg)
	if err != nil {
		return nil, err
	}

	v, err := NewVocoderWithRunner(runner, opts)
	if err != nil {
		runner.Close()
		return nil, err
	}

	return v, nil
}

func (o VocoderOptions) withGraphDefaults(g Graph) VocoderOptions {
	if o.Input == "" && len(g.Inputs) > 0 {
		o.Input = g.Inputs[0].Name
	}

	if o.Output == "" && len(g.Outputs) > 0 {
		o.Output = g.Outputs[0].Name
	}

	if o.SampleRate <= 0 {
		o.SampleRate = g.SampleRate
	}

	o.TimeMajor = o.TimeMajor || g.TimeMajor

	return o
}

// NewVocoderWithRunner wraps an existing runner.
func NewVocoderWithRunner(r GraphRunner, opts VocoderOptions) (*Vocoder, error) {
	if r == nil {
		return nil, errors.New("onnx: vocoder runner is required")
	}

	if opts.Input == "" || opts.Output == "" {
		return nil, errors.New("onnx: vocoder input and output names are required")
	}

	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}

	return &Vocoder{runner: r, opts: opts}, nil
}

func (v *Vocoder) SampleRate() int { return v.opts.SampleRate }

// Render implements audio.Vocoder. Runs are serialized; ORT sessions are
// not shared across concurrent Run calls here.
func (v *Vocoder) Render(ctx context.Context, frames [][]float32) ([]float32, error) {
	if len(frames) == 0 {
		return nil, audio.ErrEmptyFrames
	}

	input, err := MelTensor(frames, v.opts.TimeMajor)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	v.mu.Lock()
	outputs, err := v.runner.Run(ctx, map[string]*Tensor{v.opts.Input: input})
	v.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("onnx vocoder: %w", err)
	}

	out, ok := outputs[v.opts.Output]
	if !ok {
		return nil, fmt.Errorf("onnx vocoder: missing output %q", v.opts.Output)
	}

	samples, err := out.Float32s()
	if err != nil {
		return nil, fmt.Errorf("onnx vocoder: %w", err)
	}

	if len(samples) == 0 {
		return nil, errors.New("onnx vocoder: graph returned no samples")
	}

	if ok, i := tensor.AllFinite(samples); !ok {
		return nil, fmt.Errorf("onnx vocoder: sample %d is not finite", i)
	}

	slog.Debug("onnx vocoder complete", "frames", len(frames), "samples", len(samples), "ms", time.Since(start).Milliseconds())

	return samples, nil
}

func (v *Vocoder) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.runner.Close()
}
