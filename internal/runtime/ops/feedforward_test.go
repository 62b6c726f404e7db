package ops

import (
	"testing"
)

func TestFeedForwardAppliesReLU(t *testing.T) {
	ff := FeedForward{
		W1: mustTensorT(t, []float32{1, 0, 0, 1}, []int64{2, 2}),
		W2: mustTensorT(t, []float32{1, 1}, []int64{1, 2}),
	}

	out, err := ff.Forward(mustTensorT(t, []float32{1, -1}, []int64{1, 2}))
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}

	if got := out.Shape(); len(got) != 2 || got[0] != 1 || got[1] != 1 {
		t.Fatalf("shape = %v, want [1 1]", got)
	}

	// the negative hidden unit is clamped
	if got := out.Data()[0]; got != 1 {
		t.Fatalf("output = %v, want 1", got)
	}
}

func TestFeedForwardVectorWithBias(t *testing.T) {
	ff := FeedForward{
		W1: mustTensorT(t, []float32{2, 0, 0, 2}, []int64{2, 2}),
		B1: mustTensorT(t, []float32{0, -10}, []int64{2}),
		W2: mustTensorT(t, []float32{1, 1, 1, -1}, []int64{2, 2}),
		B2: mustTensorT(t, []float32{0.5, 0}, []int64{2}),
	}

	got, err := ff.ForwardVector([]float32{1, 3})
	if err != nil {
		t.Fatalf("ForwardVector: %v", err)
	}

	// hidden = relu([2, 6-10]) = [2, 0]
	if !equalApprox(got, []float32{2.5, 2}, 1e-6) {
		t.Fatalf("output = %v", got)
	}
}

func TestFeedForwardErrors(t *testing.T) {
	square := mustTensorT(t, []float32{1, 0, 0, 1}, []int64{2, 2})

	_, err := FeedForward{W1: square, W2: square}.Forward(nil)
	assertErrContains(t, err, "hidden layer")

	wide := mustTensorT(t, []float32{1, 2, 3}, []int64{1, 3})

	_, err = FeedForward{W1: square, W2: wide}.ForwardVector([]float32{1, 2})
	assertErrContains(t, err, "output layer")
}
