package native

import (
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/ops"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// Fusion combines the pooled encoder output with accent and style
// embeddings into a single conditioning vector.
type Fusion struct {
	cfg     Config
	accents *Embedding
	styles  *Embedding
	ff      ops.FeedForward
}

func loadFusion(vb *VarBuilder, cfg Config) (*Fusion, error) {
	accents, err := loadEmbedding(vb, "conditioning.accent", cfg.NumAccents, cfg.AccentDim)
	if err != nil {
		return nil, err
	}

	styles, err := loadEmbedding(vb, "conditioning.style", cfg.NumStyles, cfg.StyleDim)
	if err != nil {
		return nil, err
	}

	fc1, err := loadLinear(vb, "fusion.fc1", cfg.ConditionDim, cfg.fusionInput(), true)
	if err != nil {
		return nil, err
	}

	fc2, err := loadLinear(vb, "fusion.fc2", cfg.ConditionDim, cfg.ConditionDim, true)
	if err != nil {
		return nil, err
	}

	return &Fusion{
		cfg:     cfg,
		accents: accents,
		styles:  styles,
		ff:      ops.FeedForward{W1: fc1.Weight, B1: fc1.Bias, W2: fc2.Weight, B2: fc2.Bias},
	}, nil
}

// Fuse returns a ConditionDim-wide vector.
func (f *Fusion) Fuse(encoded *tensor.Tensor, accent, style int) ([]float32, error) {
	if encoded == nil || encoded.Rank() != 2 {
		return nil, fmt.Errorf("native: fusion expects a rank-2 encoder output, got %v", encoded.Shape())
	}

	if err := checkWidth("encoder output", int(encoded.Dim(1)), f.cfg.EncoderDim); err != nil {
		return nil, err
	}

	pooled, err := tensor.MeanRows(encoded)
	if err != nil {
		return nil, fmt.Errorf("native: fusion pooling: %w", err)
	}

	a, err := f.accents.Row(accent)
	if err != nil {
		return nil, fmt.Errorf("native: fusion accent: %w", err)
	}

	s, err := f.styles.Row(style)
	if err != nil {
		return nil, fmt.Errorf("native: fusion style: %w", err)
	}

	out, err := f.ff.ForwardVector(tensor.ConcatVectors(pooled, a, s))
	if err != nil {
		return nil, fmt.Errorf("native: fusion: %w", err)
	}

	return out, nil
}
