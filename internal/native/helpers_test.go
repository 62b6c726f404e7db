package native

import (
	"testing"

	"github.com/example/go-voicetech-tts/internal/safetensors"
)

func tinyConfig() Config {
	return Config{
		VocabSize:       12,
		NumLanguages:    11,
		NumAccents:      5,
		NumStyles:       3,
		EmbeddingDim:    4,
		LanguageDim:     3,
		EncoderHidden:   5,
		EncoderLayers:   2,
		EncoderDim:      6,
		AccentDim:       3,
		StyleDim:        2,
		ConditionDim:    8,
		PrenetDim:       3,
		DecoderHidden:   5,
		DecoderLayers:   2,
		MelBins:         7,
		StopThreshold:   0.5,
		MaxDecoderSteps: 20,
	}
}

// buildModel creates a seeded random model, letting edit adjust tensors
// before they are loaded.
func buildModel(t *testing.T, cfg Config, seed uint64, edit func(map[string]*safetensors.Tensor) []safetensors.Tensor) *Model {
	t.Helper()

	tensors := RandomTensors(cfg, seed)
	if edit != nil {
		byName := make(map[string]*safetensors.Tensor, len(tensors))
		for i := range tensors {
			byName[tensors[i].Name] = &tensors[i]
		}

		tensors = append(tensors, edit(byName)...)
	}

	raw, err := safetensors.Encode(tensors, nil)
	if err != nil {
		t.Fatalf("encode weights: %v", err)
	}

	store, err := safetensors.OpenBytes(raw)
	if err != nil {
		t.Fatalf("open weights: %v", err)
	}

	m, err := LoadModelFromStore(store, cfg)
	if err != nil {
		t.Fatalf("LoadModelFromStore: %v", err)
	}

	return m
}

// forceStop sets the stop projection to a constant logit.
func forceStop(logit float32) func(map[string]*safetensors.Tensor) []safetensors.Tensor {
	return func(w map[string]*safetensors.Tensor) []safetensors.Tensor {
		clear(w["decoder.stop.weight"].Data)
		w["decoder.stop.bias"].Data[0] = logit

		return nil
	}
}

func equalF32(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
