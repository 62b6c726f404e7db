// Package testutil provides shared fixtures and skip helpers for tests.
//
// The model fixtures are seeded and tiny, so every package can build a
// complete text-to-frames pipeline in milliseconds without a bundle on disk.
//
// Typical usage:
//
//	func TestMyPipeline(t *testing.T) {
//	    m, tok := testutil.TinyModel(t, 7, nil)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"

	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/native"
	"github.com/example/go-voicetech-tts/internal/safetensors"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

// TinyVocabulary returns a small vocabulary covering lowercase Latin,
// basic punctuation and the characters of "नमस्ते".
func TinyVocabulary(tb testing.TB) *tokenizer.Vocabulary {
	tb.Helper()

	units := []string{"<pad>", "<sos>", "<eos>", "<unk>", tokenizer.SpaceUnit}
	for r := 'a'; r <= 'z'; r++ {
		units = append(units, string(r))
	}

	units = append(units, ".", ",", "!", "?", "।", "न", "म", "स", "्", "त", "े")

	v, err := tokenizer.NewVocabulary(units)
	if err != nil {
		tb.Fatalf("tiny vocabulary: %v", err)
	}

	return v
}

// TinyConfig returns model dimensions small enough for unit tests.
func TinyConfig(vocabSize int) native.Config {
	return native.Config{
		VocabSize:       vocabSize,
		NumLanguages:    11,
		NumAccents:      5,
		NumStyles:       3,
		EmbeddingDim:    6,
		LanguageDim:     3,
		EncoderHidden:   5,
		EncoderLayers:   1,
		EncoderDim:      6,
		AccentDim:       3,
		StyleDim:        2,
		ConditionDim:    8,
		PrenetDim:       4,
		DecoderHidden:   6,
		DecoderLayers:   2,
		MelBins:         8,
		StopThreshold:   0.5,
		MaxDecoderSteps: 24,
	}
}

// WeightEdit adjusts seeded weights before they are loaded.
type WeightEdit func(cfg native.Config, w map[string]*safetensors.Tensor)

// StopBias zeroes the stop projection weights and sets its bias, making
// the stop probability sigmoid(logit) at every step.
func StopBias(logit float32) WeightEdit {
	return func(_ native.Config, w map[string]*safetensors.Tensor) {
		clear(w["decoder.stop.weight"].Data)
		w["decoder.stop.bias"].Data[0] = logit
	}
}

// TinyModel builds a seeded model over TinyVocabulary and a tokenizer for it.
func TinyModel(tb testing.TB, seed uint64, edit WeightEdit) (*native.Model, *tokenizer.CharTokenizer) {
	tb.Helper()

	vocab := TinyVocabulary(tb)

	m := TinyModelWithConfig(tb, TinyConfig(vocab.Size()), seed, edit)

	return m, tokenizer.New(vocab)
}

// TinyModelWithConfig builds a seeded model with explicit dimensions.
func TinyModelWithConfig(tb testing.TB, cfg native.Config, seed uint64, edit WeightEdit) *native.Model {
	tb.Helper()

	tensors := native.RandomTensors(cfg, seed)
	if edit != nil {
		byName := make(map[string]*safetensors.Tensor, len(tensors))
		for i := range tensors {
			byName[tensors[i].Name] = &tensors[i]
		}

		edit(cfg, byName)
	}

	raw, err := safetensors.Encode(tensors, nil)
	if err != nil {
		tb.Fatalf("encode weights: %v", err)
	}

	store, err := safetensors.OpenBytes(raw)
	if err != nil {
		tb.Fatalf("open weights: %v", err)
	}

	m, err := native.LoadModelFromStore(store, cfg)
	if err != nil {
		tb.Fatalf("load tiny model: %v", err)
	}

	return m
}

// TinyBundle writes a seeded bundle with tiny dimensions into a temp dir
// and returns the directory.
func TinyBundle(tb testing.TB, seed uint64) string {
	tb.Helper()

	dir := tb.TempDir()
	cfg := TinyConfig(tokenizer.DefaultVocabulary().Size())

	_, err := model.Init(model.InitOptions{Dir: dir, Seed: seed, Speakers: 2, Config: &cfg})
	if err != nil {
		tb.Fatalf("init tiny bundle: %v", err)
	}

	return dir
}

// RequireONNXRuntime skips the test if no ONNX Runtime shared library can be
// located. It checks ORT_LIBRARY_PATH, then VOICETECH_ORT_LIB, then common
// system library paths.
func RequireONNXRuntime(tb testing.TB) string {
	tb.Helper()

	for _, env := range []string{"ORT_LIBRARY_PATH", "VOICETECH_ORT_LIB"} {
		if p := os.Getenv(env); p != "" {
			// #nosec G703 -- tests accept explicit env-provided library paths.
			if _, err := os.Stat(p); err == nil {
				return p
			}

			tb.Skipf("ONNX Runtime library not found at %s=%q", env, p)

			return ""
		}
	}

	for _, p := range []string{
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	tb.Skip("ONNX Runtime shared library not found; set ORT_LIBRARY_PATH or VOICETECH_ORT_LIB")

	return ""
}
