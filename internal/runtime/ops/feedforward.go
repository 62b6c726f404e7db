package ops

import (
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// FeedForward is a two-layer perceptron with a ReLU between the layers.
// Biases are optional.
type FeedForward struct {
	W1, B1 *tensor.Tensor
	W2, B2 *tensor.Tensor
}

// Forward maps [..., in] to [..., out] row by row.
func (f FeedForward) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := tensor.Linear(x, f.W1, f.B1)
	if err != nil {
		return nil, fmt.Errorf("ops: feed-forward hidden layer: %w", err)
	}

	tensor.ReLU(h.RawData())

	out, err := tensor.Linear(h, f.W2, f.B2)
	if err != nil {
		return nil, fmt.Errorf("ops: feed-forward output layer: %w", err)
	}

	return out, nil
}

// ForwardVector applies the network to a single vector.
func (f FeedForward) ForwardVector(v []float32) ([]float32, error) {
	out, err := f.Forward(tensor.Vector(v))
	if err != nil {
		return nil, err
	}

	return out.RawData(), nil
}
