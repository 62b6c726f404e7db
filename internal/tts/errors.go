package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNonFinite is wrapped by an InferenceError when the model produces
	// NaN or Inf.
	ErrNonFinite = errors.New("tts: non-finite model output")
	// ErrNoFrames means decoding ended without a single frame.
	ErrNoFrames = errors.New("tts: decoder produced no frames")
)

// InferenceError is an internal failure during one request. It aborts that
// request only.
type InferenceError struct {
	Stage string
	// Step is the 1-based decoder step, or 0 before decoding began.
	Step int
	Err  error
}

func (e *InferenceError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("tts: %s failed at step %d: %v", e.Stage, e.Step, e.Err)
	}

	return fmt.Sprintf("tts: %s failed: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
