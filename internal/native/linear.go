package native

import (
	"errors"
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/ops"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

type Linear struct {
	Weight *tensor.Tensor // [out, in]
	Bias   *tensor.Tensor // optional [out]
}

func loadLinear(vb *VarBuilder, name string, out, in int, withBias bool) (*Linear, error) {
	w, err := vb.Tensor(name+".weight", int64(out), int64(in))
	if err != nil {
		return nil, err
	}

	l := &Linear{Weight: w}

	if withBias {
		b, err := vb.Tensor(name+".bias", int64(out))
		if err != nil {
			return nil, err
		}

		l.Bias = b
	}

	return l, nil
}

func (l *Linear) In() int  { return int(l.Weight.Dim(1)) }
func (l *Linear) Out() int { return int(l.Weight.Dim(0)) }

func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if l == nil || l.Weight == nil {
		return nil, errors.New("native: linear is not initialized")
	}

	return tensor.Linear(x, l.Weight, l.Bias)
}

// ForwardRows applies the layer to each row independently.
func (l *Linear) ForwardRows(rows [][]float32) ([][]float32, error) {
	x, err := tensor.FromRows(rows)
	if err != nil {
		return nil, err
	}

	y, err := l.Forward(x)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(rows))
	width := l.Out()
	data := y.RawData()

	for i := range out {
		out[i] = data[i*width : (i+1)*width]
	}

	return out, nil
}

// Embedding is a lookup table of shape [count, dim].
type Embedding struct {
	Weight *tensor.Tensor
}

func loadEmbedding(vb *VarBuilder, name string, count, dim int) (*Embedding, error) {
	w, err := vb.Tensor(name+".weight", int64(count), int64(dim))
	if err != nil {
		return nil, err
	}

	return &Embedding{Weight: w}, nil
}

func (e *Embedding) Count() int { return int(e.Weight.Dim(0)) }
func (e *Embedding) Dim() int   { return int(e.Weight.Dim(1)) }

// Row returns the embedding row for index i.
func (e *Embedding) Row(i int) ([]float32, error) {
	if i < 0 || i >= e.Count() {
		return nil, fmt.Errorf("%w: index %d not in [0,%d)", ErrIndexOutOfRange, i, e.Count())
	}

	return e.Weight.Row(i)
}

// Lookup gathers rows for ids into a [len(ids), dim] tensor.
func (e *Embedding) Lookup(ids []int64) (*tensor.Tensor, error) {
	for _, id := range ids {
		if id < 0 || id >= int64(e.Count()) {
			return nil, fmt.Errorf("%w: id %d not in [0,%d)", ErrIndexOutOfRange, id, e.Count())
		}
	}

	return e.Weight.Rows(ids)
}

func loadLSTM(vb *VarBuilder, in, hidden int) (ops.LSTMWeights, error) {
	ih, err := vb.Tensor("weight_ih", int64(4*hidden), int64(in))
	if err != nil {
		return ops.LSTMWeights{}, err
	}

	hh, err := vb.Tensor("weight_hh", int64(4*hidden), int64(hidden))
	if err != nil {
		return ops.LSTMWeights{}, err
	}

	b, err := vb.Tensor("bias", int64(4*hidden))
	if err != nil {
		return ops.LSTMWeights{}, err
	}

	w := ops.LSTMWeights{WeightIH: ih, WeightHH: hh, Bias: b}

	return w, w.Validate()
}
