package tts

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/example/go-voicetech-tts/internal/audio"
	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/config"
	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/testutil"
	"github.com/example/go-voicetech-tts/internal/text"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

func newTestService(t *testing.T, e *Engine, opts ...ServiceOption) *Service {
	t.Helper()

	svc, err := NewServiceFromEngine(e, audio.NewSineVocoder(), opts...)
	if err != nil {
		t.Fatalf("NewServiceFromEngine: %v", err)
	}

	return svc
}

func TestNewServiceFromBundle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.BundleDir = testutil.TinyBundle(t, 8)
	cfg.TTS.MaxSteps = 6

	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if svc.Engine().MaxSteps() != 6 || svc.Engine().Speakers() != 2 {
		t.Fatalf("engine limits = %d steps, %d speakers", svc.Engine().MaxSteps(), svc.Engine().Speakers())
	}

	info, ok := svc.Info()
	if !ok || info.Name != "voicetech-multilingual" || len(info.Languages) != conditioning.NumLanguages {
		t.Fatalf("Info = %+v, %v", info, ok)
	}

	out, err := svc.Synthesize(context.Background(), Request{Text: "नमस्ते दुनिया", Language: "hi"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if out.Frames == 0 || out.Frames > 6 {
		t.Fatalf("Frames = %d", out.Frames)
	}

	if out.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("SampleRate = %d", out.SampleRate)
	}

	wav, err := out.WAV()
	if err != nil {
		t.Fatalf("WAV: %v", err)
	}

	testutil.AssertValidWAV(t, wav, audio.DefaultSampleRate)
}

func TestNewServiceErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.BundleDir = t.TempDir()

	if _, err := NewService(cfg); !errors.Is(err, model.ErrNoManifest) {
		t.Fatalf("empty bundle dir err = %v, want ErrNoManifest", err)
	}

	cfg.Paths.BundleDir = testutil.TinyBundle(t, 1)
	cfg.Vocoder.Backend = "griffin-lim"

	if _, err := NewService(cfg); err == nil {
		t.Fatal("expected unknown vocoder backend error")
	}
}

func TestNewServiceFromEngineValidates(t *testing.T) {
	if _, err := NewServiceFromEngine(nil, audio.NewSineVocoder()); err == nil {
		t.Fatal("expected missing engine error")
	}

	if _, err := NewServiceFromEngine(newTestEngine(t, 1, nil), nil); err == nil {
		t.Fatal("expected missing vocoder error")
	}
}

func TestServiceSynthesizePostProcesses(t *testing.T) {
	svc := newTestService(t, newTestEngine(t, 4, testutil.StopBias(-30), WithMaxSteps(5)))

	out, err := svc.Synthesize(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	hop := audio.NewSineVocoder().HopLength
	if len(out.Samples) != 5*hop {
		t.Fatalf("len(Samples) = %d, want %d", len(out.Samples), 5*hop)
	}

	var peak float64
	for _, s := range out.Samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}

	if peak > peakTarget+1e-4 || peak == 0 {
		t.Fatalf("peak = %v, want (0, %v]", peak, peakTarget)
	}

	if out.Samples[0] != 0 || out.Samples[len(out.Samples)-1] != 0 {
		t.Fatalf("edges not faded: first %v last %v", out.Samples[0], out.Samples[len(out.Samples)-1])
	}

	if out.Duration() != audio.Duration(5*hop, audio.DefaultSampleRate) {
		t.Fatalf("Duration = %v", out.Duration())
	}
}

func TestServiceNormalizesText(t *testing.T) {
	svc := newTestService(t, newTestEngine(t, 4, nil))
	ctx := context.Background()

	raw, err := svc.Synthesize(ctx, Request{Text: "  HELLO \t World "})
	if err != nil {
		t.Fatalf("raw: %v", err)
	}

	clean, err := svc.Synthesize(ctx, Request{Text: "hello world"})
	if err != nil {
		t.Fatalf("clean: %v", err)
	}

	if len(raw.Samples) != len(clean.Samples) {
		t.Fatalf("normalized input rendered %d samples, clean input %d", len(raw.Samples), len(clean.Samples))
	}

	for i := range raw.Samples {
		if raw.Samples[i] != clean.Samples[i] {
			t.Fatalf("sample %d differs after normalization", i)
		}
	}
}

func TestServiceTextErrors(t *testing.T) {
	svc := newTestService(t, newTestEngine(t, 4, nil))

	if _, err := svc.Synthesize(context.Background(), Request{Text: "@@ ~~"}); !errors.Is(err, tokenizer.ErrEmptyInput) {
		t.Fatalf("unspeakable text err = %v, want ErrEmptyInput", err)
	}

	_, err := svc.Synthesize(context.Background(), Request{Text: "", Language: "fr"})

	var ve *conditioning.ValidationError
	if !errors.As(err, &ve) || ve.Field != "language" {
		t.Fatalf("err = %v, want language validation error", err)
	}
}

func TestServiceChunked(t *testing.T) {
	m, _ := testutil.TinyModel(t, 4, testutil.StopBias(-30))
	tok := tokenizer.New(testutil.TinyVocabulary(t), tokenizer.WithMaxTokens(16))

	e, err := NewEngine(m, tok, WithMaxSteps(3))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	svc := newTestService(t, e, WithChunkWorkers(2))
	input := "hello there. how are you? fine thanks. bye."

	chunks, err := text.PrepareChunks(input, tok, 16)
	if err != nil {
		t.Fatalf("PrepareChunks: %v", err)
	}

	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	if _, err := svc.Synthesize(context.Background(), Request{Text: input}); err == nil {
		t.Fatal("unchunked synthesis of long text should exceed the token limit")
	}

	out, err := svc.SynthesizeChunked(context.Background(), Request{Text: input})
	if err != nil {
		t.Fatalf("SynthesizeChunked: %v", err)
	}

	if out.Chunks != len(chunks) || out.Frames != 3*len(chunks) {
		t.Fatalf("Chunks = %d Frames = %d, want %d chunks of 3 frames", out.Chunks, out.Frames, len(chunks))
	}

	hop := audio.NewSineVocoder().HopLength
	gap := len(audio.Silence(out.SampleRate, chunkGapMS))

	if want := len(chunks)*3*hop + (len(chunks)-1)*gap; len(out.Samples) != want {
		t.Fatalf("len(Samples) = %d, want %d", len(out.Samples), want)
	}
}

func TestServiceStream(t *testing.T) {
	svc := newTestService(t, newTestEngine(t, 4, testutil.StopBias(-30), WithMaxSteps(4)))

	var frames int

	out, err := svc.SynthesizeStream(context.Background(), Request{Text: "hi"}, func(int, []float32) error {
		frames++
		return nil
	})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}

	if frames != 4 || out.Frames != 4 {
		t.Fatalf("observed %d frames, audio has %d", frames, out.Frames)
	}
}

type failingVocoder struct{}

func (failingVocoder) Render(context.Context, [][]float32) ([]float32, error) {
	return nil, errors.New("device lost")
}

func (failingVocoder) SampleRate() int { return 16000 }

func TestServiceVocoderFailure(t *testing.T) {
	svc, err := NewServiceFromEngine(newTestEngine(t, 4, nil), failingVocoder{})
	if err != nil {
		t.Fatalf("NewServiceFromEngine: %v", err)
	}

	_, err = svc.Synthesize(context.Background(), Request{Text: "hi"})

	var ie *InferenceError
	if !errors.As(err, &ie) || ie.Stage != "vocoder" {
		t.Fatalf("err = %v, want vocoder-stage InferenceError", err)
	}

	if svc.SampleRate() != 16000 {
		t.Fatalf("SampleRate = %d", svc.SampleRate())
	}

	if _, ok := svc.Info(); ok {
		t.Fatal("Info should report no bundle")
	}
}
