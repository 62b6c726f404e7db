package native

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-voicetech-tts/internal/safetensors"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VocabSize = 500

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.MelBins != 80 || cfg.MaxDecoderSteps != 1000 || cfg.StopThreshold != 0.5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	cfg.StopThreshold = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected stop threshold error")
	}

	cfg = DefaultConfig()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "vocab_size") {
		t.Fatalf("Validate(no vocab) err = %v", err)
	}
}

func TestConfigMetadataRoundTrip(t *testing.T) {
	cfg := tinyConfig()

	meta, err := cfg.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}

	got, err := ConfigFromMetadata(meta)
	if err != nil {
		t.Fatalf("ConfigFromMetadata: %v", err)
	}

	if got != cfg {
		t.Fatalf("config = %+v, want %+v", got, cfg)
	}

	if _, err := ConfigFromMetadata(map[string]string{}); err == nil {
		t.Fatal("expected missing metadata error")
	}
}

func TestLoadModelFromFile(t *testing.T) {
	cfg := tinyConfig()
	path := filepath.Join(t.TempDir(), "model.safetensors")

	meta, _ := cfg.Metadata()
	if err := safetensors.WriteFile(path, RandomTensors(cfg, 7), meta); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	if m.Config() != cfg {
		t.Fatalf("loaded config = %+v", m.Config())
	}

	var want int64
	for _, shape := range WeightShapes(cfg) {
		n := int64(1)
		for _, d := range shape {
			n *= d
		}

		want += n
	}

	if m.ParameterCount() != want {
		t.Fatalf("ParameterCount = %d, want %d", m.ParameterCount(), want)
	}
}

func TestRandomTensorsSeeded(t *testing.T) {
	cfg := tinyConfig()
	a := RandomTensors(cfg, 42)
	b := RandomTensors(cfg, 42)
	c := RandomTensors(cfg, 43)

	if len(a) != len(WeightShapes(cfg)) {
		t.Fatalf("tensor count = %d", len(a))
	}

	same, differs := true, false

	for i := range a {
		if !equalF32(a[i].Data, b[i].Data) {
			same = false
		}

		if !equalF32(a[i].Data, c[i].Data) {
			differs = true
		}
	}

	if !same {
		t.Fatal("same seed produced different weights")
	}

	if !differs {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestLoadRejectsWrongShapes(t *testing.T) {
	cfg := tinyConfig()
	store, err := RandomStore(cfg, 1)
	if err != nil {
		t.Fatalf("RandomStore: %v", err)
	}

	wrong := cfg
	wrong.MelBins = 9

	if _, err := LoadModelFromStore(store, wrong); err == nil || !strings.Contains(err.Error(), "shape") {
		t.Fatalf("LoadModelFromStore(wrong dims) err = %v", err)
	}
}

func TestModelsCoexist(t *testing.T) {
	small := tinyConfig()
	big := tinyConfig()
	big.MelBins = 10

	a := buildModel(t, small, 1, nil)
	b := buildModel(t, big, 1, nil)

	sa := startState(t, a, []int64{4}, 0)
	sb := startState(t, b, []int64{4}, 0)

	oa, err := a.Decoder().Step(sa)
	if err != nil {
		t.Fatalf("Step a: %v", err)
	}

	ob, err := b.Decoder().Step(sb)
	if err != nil {
		t.Fatalf("Step b: %v", err)
	}

	if len(oa.Frame) != 7 || len(ob.Frame) != 10 {
		t.Fatalf("frame widths = %d,%d", len(oa.Frame), len(ob.Frame))
	}
}
