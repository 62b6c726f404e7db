// Package tts drives the acoustic model: request validation, tokenization,
// encoding, conditioning fusion and the autoregressive decode loop, plus the
// service pipeline that turns frames into audio.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/native"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

// StopCause says why an utterance ended.
type StopCause = native.StopCause

const (
	StopLogit   = native.StopLogit
	StopStepCap = native.StopStepCap
)

// Request is one utterance to synthesize. Text must already be normalized.
// An empty Language selects conditioning.DefaultLanguage.
type Request struct {
	Text     string
	Language string
	Accent   int
	Style    int
	// Speaker is validated against the bundle's speaker count but does not
	// influence decoding.
	Speaker *int
}

// Result holds the frames of one utterance in production order.
type Result struct {
	Frames    [][]float32
	StopCause StopCause
	Steps     int
	Tokens    int
	Selection conditioning.Selection
}

// FrameObserver is called with each frame as soon as it is produced. A
// non-nil error aborts the utterance and is returned unchanged.
type FrameObserver func(step int, frame []float32) error

// Engine synthesizes frames from text. It holds only read-only state and
// is safe for concurrent use.
type Engine struct {
	model    *native.Model
	tok      tokenizer.Tokenizer
	speakers int
	maxSteps int
	logger   *slog.Logger
}

type EngineOption func(*Engine)

// WithSpeakers sets how many speaker ids are accepted. Zero rejects any
// explicit speaker.
func WithSpeakers(n int) EngineOption {
	return func(e *Engine) { e.speakers = n }
}

// WithMaxSteps lowers the decoder step cap below the model's own limit.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine binds a model to a tokenizer. When the tokenizer exposes its
// vocabulary, the vocabulary size must match the model's embedding table.
func NewEngine(model *native.Model, tok tokenizer.Tokenizer, opts ...EngineOption) (*Engine, error) {
	if model == nil {
		return nil, errors.New("tts: model is required")
	}

	if tok == nil {
		return nil, errors.New("tts: tokenizer is required")
	}

	if v, ok := tok.(interface{ Vocabulary() *tokenizer.Vocabulary }); ok {
		if got, want := v.Vocabulary().Size(), model.Config().VocabSize; got != want {
			return nil, fmt.Errorf("tts: vocabulary has %d units, model expects %d", got, want)
		}
	}

	e := &Engine{
		model:    model,
		tok:      tok,
		maxSteps: model.Config().MaxDecoderSteps,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.maxSteps = min(e.maxSteps, model.Config().MaxDecoderSteps)

	return e, nil
}

func (e *Engine) Model() *native.Model           { return e.model }
func (e *Engine) Tokenizer() tokenizer.Tokenizer { return e.tok }
func (e *Engine) Speakers() int                  { return e.speakers }
func (e *Engine) MaxSteps() int                  { return e.maxSteps }

// Synthesize decodes one utterance to completion.
func (e *Engine) Synthesize(ctx context.Context, req Request) (*Result, error) {
	return e.SynthesizeStream(ctx, req, nil)
}

// SynthesizeStream is Synthesize with a per-frame observer.
func (e *Engine) SynthesizeStream(ctx context.Context, req Request, obs FrameObserver) (*Result, error) {
	start := time.Now()

	u, err := e.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	dec := e.model.Decoder()
	stageStart := time.Now()

	for u.state.Phase == native.PhaseDecoding {
		if err := ctx.Err(); err != nil {
			dec.Stop(u.state)
			return nil, err
		}

		out, err := dec.Step(u.state)
		if err != nil {
			return nil, e.fail(u, err)
		}

		if err := e.accept(u, out); err != nil {
			return nil, err
		}

		if obs != nil {
			if err := obs(out.Step, out.Frame); err != nil {
				dec.Stop(u.state)
				return nil, err
			}
		}
	}

	e.logger.Debug("decode loop complete", "ms", time.Since(stageStart).Milliseconds(), "frames", len(u.frames))

	res, err := u.result()
	if err != nil {
		return nil, err
	}

	e.logger.Info(
		"synthesis complete",
		"language", u.sel.Language.Code,
		"tokens", len(u.tokens),
		"frames", res.Steps,
		"stop_cause", res.StopCause.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

// utterance is the per-request working set of one decode.
type utterance struct {
	req    Request
	sel    conditioning.Selection
	tokens []int64
	state  *native.DecoderState
	frames [][]float32
	cause  StopCause
	err    error
}

// prepare validates req and runs everything that precedes the decode loop.
// Validation errors are returned before any model computation.
func (e *Engine) prepare(ctx context.Context, req Request) (*utterance, error) {
	if req.Language == "" {
		req.Language = conditioning.DefaultLanguage
	}

	sel, err := conditioning.Resolve(req.Language, req.Accent, req.Style)
	if err != nil {
		return nil, err
	}

	if req.Speaker != nil {
		if id := *req.Speaker; id < 0 || id >= e.speakers {
			return nil, &conditioning.ValidationError{
				Field: "speaker_id",
				Value: id,
				Valid: fmt.Sprintf("in [0, %d)", e.speakers),
			}
		}
	}

	tokens, err := e.tok.Encode(req.Text)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stageStart := time.Now()

	encoded, err := e.model.Encoder().Encode(tokens, sel.Language.Index)
	if err != nil {
		return nil, &InferenceError{Stage: "encode", Err: err}
	}

	if ok, idx := tensor.AllFinite(encoded.RawData()); !ok {
		return nil, &InferenceError{Stage: "encode", Err: fmt.Errorf("%w at element %d", ErrNonFinite, idx)}
	}

	e.logger.Debug("encoder complete", "ms", time.Since(stageStart).Milliseconds(), "tokens", len(tokens))

	cond, err := e.model.Fusion().Fuse(encoded, sel.Accent.ID, sel.Style.ID)
	if err != nil {
		return nil, &InferenceError{Stage: "fusion", Err: err}
	}

	if ok, idx := tensor.AllFinite(cond); !ok {
		return nil, &InferenceError{Stage: "fusion", Err: fmt.Errorf("%w at element %d", ErrNonFinite, idx)}
	}

	dec := e.model.Decoder()
	state := dec.NewState()

	if err := dec.Start(state, encoded, cond); err != nil {
		return nil, &InferenceError{Stage: "decode", Err: err}
	}

	return &utterance{
		req:    req,
		sel:    sel,
		tokens: tokens,
		state:  state,
		frames: make([][]float32, 0, 64),
	}, nil
}

// accept records one step's output, enforcing finiteness and the engine's
// step cap.
func (e *Engine) accept(u *utterance, out native.StepOutput) error {
	if ok, idx := tensor.AllFinite(out.Frame); !ok {
		return e.fail(u, fmt.Errorf("%w: frame value %d at step %d", ErrNonFinite, idx, out.Step))
	}

	if ok, _ := tensor.AllFinite([]float32{out.StopLogit}); !ok {
		return e.fail(u, fmt.Errorf("%w: stop logit at step %d", ErrNonFinite, out.Step))
	}

	u.frames = append(u.frames, out.Frame)

	switch {
	case out.Stopped:
		u.cause = out.Cause
	case out.Step >= e.maxSteps:
		e.model.Decoder().Stop(u.state)
		u.cause = StopStepCap
	}

	if out.Step%50 == 0 {
		e.logger.Debug("decode progress", "step", out.Step, "stop_prob", out.StopProb)
	}

	return nil
}

func (e *Engine) fail(u *utterance, err error) error {
	e.model.Decoder().Stop(u.state)

	ie := &InferenceError{Stage: "decode", Step: u.state.Steps, Err: err}
	u.err = ie

	return ie
}

func (u *utterance) result() (*Result, error) {
	if len(u.frames) == 0 {
		return nil, &InferenceError{Stage: "decode", Err: ErrNoFrames}
	}

	return &Result{
		Frames:    u.frames,
		StopCause: u.cause,
		Steps:     len(u.frames),
		Tokens:    len(u.tokens),
		Selection: u.sel,
	}, nil
}
