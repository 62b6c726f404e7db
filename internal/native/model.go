// Package native implements the acoustic model in pure Go: a bidirectional
// LSTM encoder, accent and style conditioning fusion, and an attention-based
// autoregressive decoder that emits mel frames.
package native

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/example/go-voicetech-tts/internal/safetensors"
)

// Model is an immutable set of loaded weights. It is safe for concurrent
// use; all per-utterance state lives in DecoderState.
type Model struct {
	cfg     Config
	encoder *Encoder
	fusion  *Fusion
	decoder *Decoder
	params  int64
}

// LoadModel opens a weights file and builds a model from the config stored
// in its metadata.
func LoadModel(path string) (*Model, error) {
	store, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	cfg, err := ConfigFromMetadata(store.Metadata())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return LoadModelFromStore(store, cfg)
}

// LoadModelFromStore builds a model from store with explicit dimensions.
// Every weight is checked against cfg.
func LoadModelFromStore(store *safetensors.Store, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vb := NewVarBuilder(store)

	encoder, err := loadEncoder(vb, cfg)
	if err != nil {
		return nil, fmt.Errorf("native: load encoder: %w", err)
	}

	fusion, err := loadFusion(vb, cfg)
	if err != nil {
		return nil, fmt.Errorf("native: load fusion: %w", err)
	}

	decoder, err := loadDecoder(vb, cfg)
	if err != nil {
		return nil, fmt.Errorf("native: load decoder: %w", err)
	}

	return &Model{
		cfg:     cfg,
		encoder: encoder,
		fusion:  fusion,
		decoder: decoder,
		params:  store.ParameterCount(),
	}, nil
}

func (m *Model) Config() Config        { return m.cfg }
func (m *Model) Encoder() *Encoder     { return m.encoder }
func (m *Model) Fusion() *Fusion       { return m.fusion }
func (m *Model) Decoder() *Decoder     { return m.decoder }
func (m *Model) ParameterCount() int64 { return m.params }

// WeightShapes lists every weight name the model reads, with its expected
// shape. Optional weights are not included.
func WeightShapes(cfg Config) map[string][]int64 {
	shapes := map[string][]int64{}
	add := func(name string, dims ...int) {
		s := make([]int64, len(dims))
		for i, d := range dims {
			s[i] = int64(d)
		}

		shapes[name] = s
	}
	addLSTM := func(prefix string, in, hidden int) {
		add(prefix+".weight_ih", 4*hidden, in)
		add(prefix+".weight_hh", 4*hidden, hidden)
		add(prefix+".bias", 4*hidden)
	}

	add("embedding.weight", cfg.VocabSize, cfg.EmbeddingDim)
	add("conditioning.language.weight", cfg.NumLanguages, cfg.LanguageDim)
	add("conditioning.accent.weight", cfg.NumAccents, cfg.AccentDim)
	add("conditioning.style.weight", cfg.NumStyles, cfg.StyleDim)

	in := cfg.encoderInput()
	for l := range cfg.EncoderLayers {
		addLSTM(fmt.Sprintf("encoder.lstm.%d.fwd", l), in, cfg.EncoderHidden)
		addLSTM(fmt.Sprintf("encoder.lstm.%d.bwd", l), in, cfg.EncoderHidden)
		in = 2 * cfg.EncoderHidden
	}

	add("encoder.proj.weight", cfg.EncoderDim, 2*cfg.EncoderHidden)
	add("encoder.proj.bias", cfg.EncoderDim)
	add("fusion.fc1.weight", cfg.ConditionDim, cfg.fusionInput())
	add("fusion.fc1.bias", cfg.ConditionDim)
	add("fusion.fc2.weight", cfg.ConditionDim, cfg.ConditionDim)
	add("fusion.fc2.bias", cfg.ConditionDim)
	add("decoder.prenet.weight", cfg.PrenetDim, cfg.MelBins)
	add("decoder.prenet.bias", cfg.PrenetDim)

	in = cfg.decoderInput()
	for l := range cfg.DecoderLayers {
		addLSTM(fmt.Sprintf("decoder.lstm.%d", l), in, cfg.DecoderHidden)
		in = cfg.DecoderHidden
	}

	add("decoder.query.weight", cfg.EncoderDim, cfg.DecoderHidden)
	add("decoder.mel.weight", cfg.MelBins, cfg.projectionInput())
	add("decoder.mel.bias", cfg.MelBins)
	add("decoder.stop.weight", 1, cfg.projectionInput())
	add("decoder.stop.bias", 1)

	return shapes
}

// RandomTensors initializes every weight for cfg from a seeded generator,
// drawing uniformly from [-1/sqrt(fan_in), 1/sqrt(fan_in)]. Embedding tables
// use a standard normal. The same seed always yields the same tensors.
func RandomTensors(cfg Config, seed uint64) []safetensors.Tensor {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	shapes := WeightShapes(cfg)

	names := make([]string, 0, len(shapes))
	for name := range shapes {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]safetensors.Tensor, 0, len(names))

	for _, name := range names {
		shape := shapes[name]
		n := 1
		for _, d := range shape {
			n *= int(d)
		}

		data := make([]float32, n)

		switch {
		case isEmbedding(name):
			for i := range data {
				data[i] = float32(rng.NormFloat64())
			}
		default:
			bound := 1 / math.Sqrt(float64(fanIn(name, shapes)))

			for i := range data {
				data[i] = float32((rng.Float64()*2 - 1) * bound)
			}
		}

		out = append(out, safetensors.Tensor{Name: name, Shape: shape, Data: data})
	}

	return out
}

// NewRandomModel builds an untrained model with seeded random weights.
func NewRandomModel(cfg Config, seed uint64) (*Model, error) {
	store, err := RandomStore(cfg, seed)
	if err != nil {
		return nil, err
	}

	return LoadModelFromStore(store, cfg)
}

// RandomStore encodes RandomTensors, with cfg in the metadata, into an
// in-memory store.
func RandomStore(cfg Config, seed uint64) (*safetensors.Store, error) {
	meta, err := cfg.Metadata()
	if err != nil {
		return nil, err
	}

	raw, err := safetensors.Encode(RandomTensors(cfg, seed), meta)
	if err != nil {
		return nil, err
	}

	return safetensors.OpenBytes(raw)
}

func isEmbedding(name string) bool {
	switch name {
	case "embedding.weight", "conditioning.language.weight", "conditioning.accent.weight", "conditioning.style.weight":
		return true
	}

	return false
}

// fanIn returns the input width of the layer a weight or bias belongs to.
func fanIn(name string, shapes map[string][]int64) int64 {
	if s := shapes[name]; len(s) == 2 {
		return max(s[1], 1)
	}

	base := strings.TrimSuffix(name, ".bias")
	for _, sibling := range []string{".weight_hh", ".weight"} {
		if s, ok := shapes[base+sibling]; ok && len(s) == 2 {
			return max(s[1], 1)
		}
	}

	return 1
}
