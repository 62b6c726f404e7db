package native

import (
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/ops"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// Encoder turns a token sequence into one hidden vector per position.
type Encoder struct {
	cfg       Config
	embedding *Embedding
	languages *Embedding
	forward   []ops.LSTMWeights
	backward  []ops.LSTMWeights
	proj      *Linear
}

func loadEncoder(vb *VarBuilder, cfg Config) (*Encoder, error) {
	embedding, err := loadEmbedding(vb, "embedding", cfg.VocabSize, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	languages, err := loadEmbedding(vb, "conditioning.language", cfg.NumLanguages, cfg.LanguageDim)
	if err != nil {
		return nil, err
	}

	enc := &Encoder{cfg: cfg, embedding: embedding, languages: languages}
	in := cfg.encoderInput()

	for l := range cfg.EncoderLayers {
		layer := vb.Path("encoder.lstm", l)

		fwd, err := loadLSTM(layer.Path("fwd"), in, cfg.EncoderHidden)
		if err != nil {
			return nil, fmt.Errorf("native: encoder layer %d forward: %w", l, err)
		}

		bwd, err := loadLSTM(layer.Path("bwd"), in, cfg.EncoderHidden)
		if err != nil {
			return nil, fmt.Errorf("native: encoder layer %d backward: %w", l, err)
		}

		enc.forward = append(enc.forward, fwd)
		enc.backward = append(enc.backward, bwd)
		in = 2 * cfg.EncoderHidden
	}

	enc.proj, err = loadLinear(vb, "encoder.proj", cfg.EncoderDim, 2*cfg.EncoderHidden, true)
	if err != nil {
		return nil, err
	}

	return enc, nil
}

// Encode returns a [len(tokens), EncoderDim] tensor for tokens spoken in
// language lang. The result depends only on its inputs.
func (e *Encoder) Encode(tokens []int64, lang int) (*tensor.Tensor, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptySequence
	}

	emb, err := e.embedding.Lookup(tokens)
	if err != nil {
		return nil, fmt.Errorf("native: encoder embedding: %w", err)
	}

	langRow, err := e.languages.Row(lang)
	if err != nil {
		return nil, fmt.Errorf("native: encoder language: %w", err)
	}

	width := int(emb.Dim(1))
	embData := emb.RawData()

	rows := make([][]float32, len(tokens))
	for t := range rows {
		rows[t] = tensor.ConcatVectors(embData[t*width:(t+1)*width], langRow)
	}

	for l := range e.forward {
		fwd, err := ops.LSTMSequence(e.forward[l], rows, false)
		if err != nil {
			return nil, fmt.Errorf("native: encoder layer %d forward: %w", l, err)
		}

		bwd, err := ops.LSTMSequence(e.backward[l], rows, true)
		if err != nil {
			return nil, fmt.Errorf("native: encoder layer %d backward: %w", l, err)
		}

		for t := range rows {
			rows[t] = tensor.ConcatVectors(fwd[t], bwd[t])
		}
	}

	x, err := tensor.FromRows(rows)
	if err != nil {
		return nil, err
	}

	out, err := e.proj.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("native: encoder projection: %w", err)
	}

	return out, nil
}
