package native

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MetadataConfigKey is the safetensors metadata key holding the JSON model
// configuration.
const MetadataConfigKey = "voicetech.config"

// Config describes the acoustic model's dimensions and decoding limits.
type Config struct {
	VocabSize     int `json:"vocab_size"     yaml:"vocab_size"`
	NumLanguages  int `json:"num_languages"  yaml:"num_languages"`
	NumAccents    int `json:"num_accents"    yaml:"num_accents"`
	NumStyles     int `json:"num_styles"     yaml:"num_styles"`
	EmbeddingDim  int `json:"embedding_dim"  yaml:"embedding_dim"`
	LanguageDim   int `json:"language_dim"   yaml:"language_dim"`
	EncoderHidden int `json:"encoder_hidden" yaml:"encoder_hidden"`
	EncoderLayers int `json:"encoder_layers" yaml:"encoder_layers"`
	EncoderDim    int `json:"encoder_dim"    yaml:"encoder_dim"`
	AccentDim     int `json:"accent_dim"     yaml:"accent_dim"`
	StyleDim      int `json:"style_dim"      yaml:"style_dim"`
	ConditionDim  int `json:"condition_dim"  yaml:"condition_dim"`
	PrenetDim     int `json:"prenet_dim"     yaml:"prenet_dim"`
	DecoderHidden int `json:"decoder_hidden" yaml:"decoder_hidden"`
	DecoderLayers int `json:"decoder_layers" yaml:"decoder_layers"`
	MelBins       int `json:"mel_bins"       yaml:"mel_bins"`

	StopThreshold   float32 `json:"stop_threshold"    yaml:"stop_threshold"`
	MaxDecoderSteps int     `json:"max_decoder_steps" yaml:"max_decoder_steps"`
}

// DefaultConfig returns the production dimensions. VocabSize is left at
// zero and must be filled from the vocabulary in use.
func DefaultConfig() Config {
	return Config{
		NumLanguages:    11,
		NumAccents:      5,
		NumStyles:       3,
		EmbeddingDim:    256,
		LanguageDim:     256,
		EncoderHidden:   512,
		EncoderLayers:   2,
		EncoderDim:      512,
		AccentDim:       512,
		StyleDim:        512,
		ConditionDim:    512,
		PrenetDim:       256,
		DecoderHidden:   512,
		DecoderLayers:   2,
		MelBins:         80,
		StopThreshold:   0.5,
		MaxDecoderSteps: 1000,
	}
}

func (c Config) Validate() error {
	dims := []struct {
		name string
		v    int
	}{
		{"vocab_size", c.VocabSize},
		{"num_languages", c.NumLanguages},
		{"num_accents", c.NumAccents},
		{"num_styles", c.NumStyles},
		{"embedding_dim", c.EmbeddingDim},
		{"language_dim", c.LanguageDim},
		{"encoder_hidden", c.EncoderHidden},
		{"encoder_layers", c.EncoderLayers},
		{"encoder_dim", c.EncoderDim},
		{"accent_dim", c.AccentDim},
		{"style_dim", c.StyleDim},
		{"condition_dim", c.ConditionDim},
		{"prenet_dim", c.PrenetDim},
		{"decoder_hidden", c.DecoderHidden},
		{"decoder_layers", c.DecoderLayers},
		{"mel_bins", c.MelBins},
		{"max_decoder_steps", c.MaxDecoderSteps},
	}

	for _, d := range dims {
		if d.v <= 0 {
			return fmt.Errorf("native: config %s must be > 0, got %d", d.name, d.v)
		}
	}

	if c.StopThreshold <= 0 || c.StopThreshold >= 1 {
		return fmt.Errorf("native: config stop_threshold must be in (0,1), got %v", c.StopThreshold)
	}

	return nil
}

// Metadata encodes the config for storage alongside the weights.
func (c Config) Metadata() (map[string]string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("native: encode config: %w", err)
	}

	return map[string]string{MetadataConfigKey: string(raw)}, nil
}

// ConfigFromMetadata decodes a config written by Config.Metadata. Fields
// missing from the stored JSON keep their DefaultConfig values.
func ConfigFromMetadata(meta map[string]string) (Config, error) {
	raw, ok := meta[MetadataConfigKey]
	if !ok {
		return Config{}, errors.New("native: weights carry no config metadata")
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("native: decode config metadata: %w", err)
	}

	return cfg, nil
}

func (c Config) encoderInput() int    { return c.EmbeddingDim + c.LanguageDim }
func (c Config) fusionInput() int     { return c.EncoderDim + c.AccentDim + c.StyleDim }
func (c Config) decoderInput() int    { return c.PrenetDim + c.ConditionDim + c.EncoderDim }
func (c Config) projectionInput() int { return c.DecoderHidden + c.EncoderDim }
