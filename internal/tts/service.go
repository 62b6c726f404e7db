package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-voicetech-tts/internal/audio"
	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/config"
	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/onnx"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
	"github.com/example/go-voicetech-tts/internal/text"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

const (
	peakTarget   = 0.95
	fadeMS       = 5
	chunkGapMS   = 120
	defaultLimit = 150
)

// Audio is a rendered utterance.
type Audio struct {
	Samples    []float32
	SampleRate int
	Frames     int
	Chunks     int
	StopCause  StopCause
	Selection  conditioning.Selection
}

func (a *Audio) Duration() time.Duration {
	return audio.Duration(len(a.Samples), a.SampleRate)
}

// WAV encodes the samples as 16-bit mono PCM.
func (a *Audio) WAV() ([]byte, error) {
	return audio.EncodeWAV(a.Samples, a.SampleRate)
}

// Service runs the full text-to-waveform pipeline: normalization, the
// acoustic engine, the vocoder and post-processing.
type Service struct {
	engine    *Engine
	vocoder   audio.Vocoder
	bundle    *model.Bundle
	maxTokens int
	workers   int
	logger    *slog.Logger
}

type ServiceOption func(*Service)

// WithBundle attaches the bundle the engine was built from, for Info.
func WithBundle(b *model.Bundle) ServiceOption {
	return func(s *Service) { s.bundle = b }
}

// WithChunkWorkers bounds how many chunks SynthesizeChunked decodes at once.
func WithChunkWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService loads the model bundle named by cfg and builds the vocoder
// selected by cfg.Vocoder.Backend.
func NewService(cfg config.Config) (*Service, error) {
	if cfg.Runtime.Threads > 0 {
		tensor.SetWorkers(cfg.Runtime.Threads)
	}

	bundle, err := model.Load(cfg.Paths.BundleDir)
	if err != nil {
		return nil, err
	}

	tok := tokenizer.New(bundle.Vocabulary, tokenizer.WithMaxTokens(cfg.TTS.MaxTokens))

	engine, err := NewEngine(bundle.Model, tok,
		WithSpeakers(bundle.Manifest.Speakers),
		WithMaxSteps(cfg.TTS.MaxSteps),
	)
	if err != nil {
		return nil, err
	}

	voc, err := NewVocoder(cfg)
	if err != nil {
		return nil, err
	}

	return NewServiceFromEngine(engine, voc, WithBundle(bundle), WithChunkWorkers(cfg.TTS.Workers))
}

// NewVocoder builds the vocoder backend named in cfg.
func NewVocoder(cfg config.Config) (audio.Vocoder, error) {
	backend, err := config.NormalizeVocoder(cfg.Vocoder.Backend)
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.VocoderONNX:
		info, err := onnx.Bootstrap(cfg.Runtime)
		if err != nil {
			return nil, fmt.Errorf("onnx vocoder: %w", err)
		}

		return onnx.NewVocoder(cfg.Vocoder.ONNXPath, onnx.RunnerConfig{LibraryPath: info.LibraryPath}, onnx.VocoderOptions{})
	default:
		v := audio.NewSineVocoder()
		if cfg.Vocoder.HopLength > 0 {
			v.HopLength = cfg.Vocoder.HopLength
		}

		return v, nil
	}
}

// NewServiceFromEngine assembles a service from parts built elsewhere.
func NewServiceFromEngine(engine *Engine, voc audio.Vocoder, opts ...ServiceOption) (*Service, error) {
	if engine == nil {
		return nil, errors.New("tts: engine is required")
	}

	if voc == nil {
		return nil, errors.New("tts: vocoder is required")
	}

	s := &Service{
		engine:    engine,
		vocoder:   voc,
		maxTokens: defaultLimit,
		logger:    slog.Default(),
	}

	if t, ok := engine.Tokenizer().(interface{ MaxTokens() int }); ok && t.MaxTokens() > 0 {
		s.maxTokens = t.MaxTokens()
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Service) Engine() *Engine        { return s.engine }
func (s *Service) Vocoder() audio.Vocoder { return s.vocoder }
func (s *Service) SampleRate() int        { return s.vocoder.SampleRate() }
func (s *Service) Bundle() *model.Bundle  { return s.bundle }

// Close releases vocoder resources such as ONNX sessions.
func (s *Service) Close() {
	if c, ok := s.vocoder.(interface{ Close() }); ok {
		c.Close()
	}
}

// Info describes the loaded bundle. ok is false when the service was not
// built from a bundle.
func (s *Service) Info() (model.Info, bool) {
	if s.bundle == nil {
		return model.Info{}, false
	}

	return s.bundle.Info(), true
}

// Synthesize normalizes req.Text and renders it as one utterance.
func (s *Service) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	return s.SynthesizeStream(ctx, req, nil)
}

// SynthesizeStream is Synthesize with each mel frame passed to obs as it is
// decoded.
func (s *Service) SynthesizeStream(ctx context.Context, req Request, obs FrameObserver) (*Audio, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.SynthesizeStream(ctx, req, obs)
	if err != nil {
		return nil, err
	}

	samples, err := s.render(ctx, res.Frames)
	if err != nil {
		return nil, err
	}

	return &Audio{
		Samples:    samples,
		SampleRate: s.SampleRate(),
		Frames:     res.Steps,
		Chunks:     1,
		StopCause:  res.StopCause,
		Selection:  res.Selection,
	}, nil
}

// SynthesizeChunked splits long text into sentence groups that fit the
// tokenizer limit, decodes them concurrently and joins the audio in order
// with a short pause between chunks.
func (s *Service) SynthesizeChunked(ctx context.Context, req Request) (*Audio, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	chunks, err := text.PrepareChunks(req.Text, s.engine.Tokenizer(), s.maxTokens)
	if err != nil {
		return nil, err
	}

	reqs := make([]Request, len(chunks))
	for i, c := range chunks {
		reqs[i] = req
		reqs[i].Text = c.Text
	}

	start := time.Now()
	results := s.engine.SynthesizeParallel(ctx, reqs, s.workers)

	out := &Audio{SampleRate: s.SampleRate(), Chunks: len(chunks)}
	gap := audio.Silence(out.SampleRate, chunkGapMS)

	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i+1, r.Err)
		}

		samples, err := s.render(ctx, r.Result.Frames)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i+1, err)
		}

		if i > 0 {
			out.Samples = append(out.Samples, gap...)
		}

		out.Samples = append(out.Samples, samples...)
		out.Frames += r.Result.Steps
		out.StopCause = r.Result.StopCause
		out.Selection = r.Result.Selection
	}

	s.logger.Info("chunked synthesis complete",
		"chunks", len(chunks),
		"frames", out.Frames,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return out, nil
}

// normalize validates conditioning first so enum errors win over text
// errors, then applies the text normalizer for the request language.
func (s *Service) normalize(req Request) (Request, error) {
	if req.Language == "" {
		req.Language = conditioning.DefaultLanguage
	}

	if _, err := conditioning.Resolve(req.Language, req.Accent, req.Style); err != nil {
		return req, err
	}

	normalized, err := text.Normalize(req.Text, req.Language)
	if errors.Is(err, text.ErrEmptyText) {
		return req, tokenizer.ErrEmptyInput
	}

	if err != nil {
		return req, err
	}

	req.Text = normalized

	return req, nil
}

func (s *Service) render(ctx context.Context, frames [][]float32) ([]float32, error) {
	start := time.Now()

	samples, err := s.vocoder.Render(ctx, frames)
	if err != nil {
		return nil, &InferenceError{Stage: "vocoder", Err: err}
	}

	sr := s.SampleRate()
	audio.DCBlock(samples, sr)
	audio.PeakNormalize(samples, peakTarget)
	audio.FadeIn(samples, sr, fadeMS)
	audio.FadeOut(samples, sr, fadeMS)

	s.logger.Debug("vocoder complete", "ms", time.Since(start).Milliseconds(), "samples", len(samples))

	return samples, nil
}
