package ops

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// Attend computes single-query scaled dot-product attention over a sequence
// of memory rows.
// memory shape: [T, d], query length: d.
// It returns the context vector (length d) and the attention weights
// (length T, summing to 1).
func Attend(memory *tensor.Tensor, query []float32) (context, weights []float32, err error) {
	if memory == nil {
		return nil, nil, errors.New("ops: attention memory is nil")
	}

	shape := memory.Shape()
	if len(shape) != 2 {
		return nil, nil, fmt.Errorf("ops: attention memory must be rank 2, got %v", shape)
	}

	steps, d := int(shape[0]), int(shape[1])
	if steps == 0 {
		return nil, nil, errors.New("ops: attention over empty memory")
	}

	if len(query) != d {
		return nil, nil, fmt.Errorf("ops: attention query depth %d does not match memory depth %d", len(query), d)
	}

	scores, err := tensor.MatVec(memory, query)
	if err != nil {
		return nil, nil, fmt.Errorf("ops: attention scores: %w", err)
	}

	scale := float32(1.0 / math.Sqrt(float64(d)))
	for i := range scores {
		scores[i] *= scale
	}

	if err := tensor.SoftmaxInPlace(scores); err != nil {
		return nil, nil, fmt.Errorf("ops: attention softmax: %w", err)
	}

	weights = scores
	context = make([]float32, d)
	mem := memory.RawData()

	for t, w := range weights {
		row := mem[t*d : (t+1)*d]
		for j, v := range row {
			context[j] += w * v
		}
	}

	return context, weights, nil
}
