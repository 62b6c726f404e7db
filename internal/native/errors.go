package native

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned for a token or conditioning index
	// outside its embedding table.
	ErrIndexOutOfRange = errors.New("native: index out of range")
	ErrNotStarted      = errors.New("native: decoder state not started")
	ErrAlreadyStarted  = errors.New("native: decoder state already started")
	ErrStopped         = errors.New("native: decoder state already stopped")
	ErrEmptySequence   = errors.New("native: empty input sequence")
)

// ShapeMismatchError reports a vector or tensor whose width does not match
// the configured dimension.
type ShapeMismatchError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("native: %s width %d, want %d", e.What, e.Got, e.Want)
}

// StateError reports a decoder state StepBatch rejected before stepping.
// No state in the batch was modified.
type StateError struct {
	Index int
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("native: decoder state %d: %v", e.Index, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

func checkWidth(what string, got, want int) error {
	if got != want {
		return &ShapeMismatchError{What: what, Want: want, Got: got}
	}

	return nil
}
