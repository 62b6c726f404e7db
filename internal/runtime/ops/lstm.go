package ops

import (
	"errors"
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// LSTMWeights holds one LSTM cell's parameters with gates stacked in
// input, forget, cell, output order.
//
//	WeightIH: [4*hidden, in]
//	WeightHH: [4*hidden, hidden]
//	Bias:     [4*hidden]
type LSTMWeights struct {
	WeightIH *tensor.Tensor
	WeightHH *tensor.Tensor
	Bias     *tensor.Tensor
}

// Hidden returns the cell's hidden width.
func (w LSTMWeights) Hidden() int {
	if w.WeightHH == nil {
		return 0
	}

	return int(w.WeightHH.Dim(1))
}

// Input returns the cell's input width.
func (w LSTMWeights) Input() int {
	if w.WeightIH == nil {
		return 0
	}

	return int(w.WeightIH.Dim(1))
}

// Validate checks that the three parameter tensors agree on sizes.
func (w LSTMWeights) Validate() error {
	if w.WeightIH == nil || w.WeightHH == nil || w.Bias == nil {
		return errors.New("ops: lstm weights incomplete")
	}

	if w.WeightIH.Rank() != 2 || w.WeightHH.Rank() != 2 || w.Bias.Rank() != 1 {
		return fmt.Errorf("ops: lstm weight ranks ih=%v hh=%v bias=%v", w.WeightIH.Shape(), w.WeightHH.Shape(), w.Bias.Shape())
	}

	h := w.WeightHH.Dim(1)
	if w.WeightHH.Dim(0) != 4*h || w.WeightIH.Dim(0) != 4*h || w.Bias.Dim(0) != 4*h {
		return fmt.Errorf("ops: lstm gate rows mismatch: ih=%v hh=%v bias=%v", w.WeightIH.Shape(), w.WeightHH.Shape(), w.Bias.Shape())
	}

	return nil
}

// LSTMCell advances one LSTM step and returns the new hidden and cell state.
// The inputs are not modified.
func LSTMCell(w LSTMWeights, x, h, c []float32) (hNext, cNext []float32, err error) {
	hidden := w.Hidden()
	if len(x) != w.Input() {
		return nil, nil, fmt.Errorf("ops: lstm input width %d, want %d", len(x), w.Input())
	}

	if len(h) != hidden || len(c) != hidden {
		return nil, nil, fmt.Errorf("ops: lstm state widths h=%d c=%d, want %d", len(h), len(c), hidden)
	}

	gx, err := tensor.MatVec(w.WeightIH, x)
	if err != nil {
		return nil, nil, fmt.Errorf("ops: lstm input projection: %w", err)
	}

	gh, err := tensor.MatVec(w.WeightHH, h)
	if err != nil {
		return nil, nil, fmt.Errorf("ops: lstm recurrent projection: %w", err)
	}

	bias := w.Bias.RawData()
	hNext = make([]float32, hidden)
	cNext = make([]float32, hidden)

	for j := range hidden {
		ig := tensor.Sigmoid(gx[j] + gh[j] + bias[j])
		fg := tensor.Sigmoid(gx[hidden+j] + gh[hidden+j] + bias[hidden+j])
		gg := tensor.Tanh(gx[2*hidden+j] + gh[2*hidden+j] + bias[2*hidden+j])
		og := tensor.Sigmoid(gx[3*hidden+j] + gh[3*hidden+j] + bias[3*hidden+j])

		cNext[j] = fg*c[j] + ig*gg
		hNext[j] = og * tensor.Tanh(cNext[j])
	}

	return hNext, cNext, nil
}

// LSTMSequence runs a cell over rows in order (or reversed) from a zero
// state and returns the hidden output for each row, indexed by position.
func LSTMSequence(w LSTMWeights, rows [][]float32, reverse bool) ([][]float32, error) {
	hidden := w.Hidden()
	h := make([]float32, hidden)
	c := make([]float32, hidden)
	out := make([][]float32, len(rows))

	for k := range rows {
		t := k
		if reverse {
			t = len(rows) - 1 - k
		}

		var err error

		h, c, err = LSTMCell(w, rows[t], h, c)
		if err != nil {
			return nil, fmt.Errorf("ops: lstm position %d: %w", t, err)
		}

		out[t] = h
	}

	return out, nil
}
