package native

import (
	"fmt"

	"github.com/example/go-voicetech-tts/internal/runtime/ops"
	"github.com/example/go-voicetech-tts/internal/runtime/tensor"
)

// Phase is the lifecycle position of a DecoderState.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseDecoding
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseDecoding:
		return "decoding"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// StopCause says why decoding ended.
type StopCause int

const (
	StopNone StopCause = iota
	// StopLogit means the learned stop probability crossed the threshold.
	StopLogit
	// StopStepCap means the step limit was reached first.
	StopStepCap
)

func (c StopCause) String() string {
	switch c {
	case StopLogit:
		return "stop_logit"
	case StopStepCap:
		return "step_cap"
	default:
		return "none"
	}
}

// DecoderState is the mutable state of one utterance's decode. It is owned
// by a single caller and must not be shared between decodes.
type DecoderState struct {
	Phase       Phase
	H           [][]float32
	C           [][]float32
	PrevFrame   []float32
	PrevContext []float32
	Steps       int
	Cause       StopCause

	encoded *tensor.Tensor
	cond    []float32
}

// StepOutput is the result of one decoder transition.
type StepOutput struct {
	Frame     []float32
	StopLogit float32
	StopProb  float32
	Attention []float32
	Step      int
	Stopped   bool
	Cause     StopCause
}

// Decoder produces mel frames one step at a time.
type Decoder struct {
	cfg        Config
	startFrame []float32
	prenet     *Linear
	lstm       []ops.LSTMWeights
	query      *Linear
	mel        *Linear
	stop       *Linear
}

func loadDecoder(vb *VarBuilder, cfg Config) (*Decoder, error) {
	d := &Decoder{cfg: cfg, startFrame: make([]float32, cfg.MelBins)}

	start, ok, err := vb.TensorMaybe("decoder.start_frame", int64(cfg.MelBins))
	if err != nil {
		return nil, err
	}

	if ok {
		d.startFrame = start.Data()
	}

	if d.prenet, err = loadLinear(vb, "decoder.prenet", cfg.PrenetDim, cfg.MelBins, true); err != nil {
		return nil, err
	}

	in := cfg.decoderInput()

	for l := range cfg.DecoderLayers {
		w, err := loadLSTM(vb.Path("decoder.lstm", l), in, cfg.DecoderHidden)
		if err != nil {
			return nil, fmt.Errorf("native: decoder layer %d: %w", l, err)
		}

		d.lstm = append(d.lstm, w)
		in = cfg.DecoderHidden
	}

	if d.query, err = loadLinear(vb, "decoder.query", cfg.EncoderDim, cfg.DecoderHidden, false); err != nil {
		return nil, err
	}

	if d.mel, err = loadLinear(vb, "decoder.mel", cfg.MelBins, cfg.projectionInput(), true); err != nil {
		return nil, err
	}

	if d.stop, err = loadLinear(vb, "decoder.stop", 1, cfg.projectionInput(), true); err != nil {
		return nil, err
	}

	return d, nil
}

// NewState returns a fresh state in PhaseNotStarted.
func (d *Decoder) NewState() *DecoderState {
	return &DecoderState{Phase: PhaseNotStarted}
}

// Start moves state from NotStarted to Decoding for the given encoder output
// and conditioning vector. The state keeps a reference to encoded, which must
// not be modified while decoding, and a copy of cond.
func (d *Decoder) Start(state *DecoderState, encoded *tensor.Tensor, cond []float32) error {
	switch state.Phase {
	case PhaseNotStarted:
	case PhaseStopped:
		return ErrStopped
	default:
		return ErrAlreadyStarted
	}

	if encoded == nil || encoded.Rank() != 2 || encoded.Dim(0) == 0 {
		return fmt.Errorf("native: decoder needs a non-empty [T, %d] encoder output, got %v", d.cfg.EncoderDim, encoded.Shape())
	}

	if err := checkWidth("encoder output", int(encoded.Dim(1)), d.cfg.EncoderDim); err != nil {
		return err
	}

	if err := checkWidth("conditioning vector", len(cond), d.cfg.ConditionDim); err != nil {
		return err
	}

	state.H = make([][]float32, d.cfg.DecoderLayers)
	state.C = make([][]float32, d.cfg.DecoderLayers)

	for l := range state.H {
		state.H[l] = make([]float32, d.cfg.DecoderHidden)
		state.C[l] = make([]float32, d.cfg.DecoderHidden)
	}

	state.PrevFrame = append([]float32(nil), d.startFrame...)
	state.PrevContext = make([]float32, d.cfg.EncoderDim)
	state.Steps = 0
	state.Cause = StopNone
	state.encoded = encoded
	state.cond = append([]float32(nil), cond...)
	state.Phase = PhaseDecoding

	return nil
}

// Step advances a single state by one frame.
func (d *Decoder) Step(state *DecoderState) (StepOutput, error) {
	out, err := d.StepBatch([]*DecoderState{state})
	if err != nil {
		return StepOutput{}, err
	}

	return out[0], nil
}

// StepBatch advances several independent states in lockstep. Every row goes
// through the same kernels as Step, so a state produces identical frames
// whether it is stepped alone or as part of a batch. All states must be in
// PhaseDecoding; otherwise a *StateError names the first bad one and no state
// is modified. Any other error may leave states partially advanced.
func (d *Decoder) StepBatch(states []*DecoderState) ([]StepOutput, error) {
	if len(states) == 0 {
		return nil, nil
	}

	for i, s := range states {
		if err := d.checkState(s); err != nil {
			return nil, &StateError{Index: i, Err: err}
		}
	}

	prev := make([][]float32, len(states))
	for i, s := range states {
		prev[i] = s.PrevFrame
	}

	pre, err := d.prenet.ForwardRows(prev)
	if err != nil {
		return nil, fmt.Errorf("native: decoder prenet: %w", err)
	}

	tops := make([][]float32, len(states))

	for i, s := range states {
		tensor.ReLU(pre[i])
		x := tensor.ConcatVectors(pre[i], s.cond, s.PrevContext)

		for l, w := range d.lstm {
			h, c, err := ops.LSTMCell(w, x, s.H[l], s.C[l])
			if err != nil {
				return nil, fmt.Errorf("native: decoder layer %d: %w", l, err)
			}

			s.H[l], s.C[l] = h, c
			x = h
		}

		tops[i] = x
	}

	queries, err := d.query.ForwardRows(tops)
	if err != nil {
		return nil, fmt.Errorf("native: decoder query: %w", err)
	}

	joined := make([][]float32, len(states))
	weights := make([][]float32, len(states))

	for i, s := range states {
		ctx, w, err := ops.Attend(s.encoded, queries[i])
		if err != nil {
			return nil, fmt.Errorf("native: decoder attention: %w", err)
		}

		s.PrevContext = ctx
		weights[i] = w
		joined[i] = tensor.ConcatVectors(tops[i], ctx)
	}

	frames, err := d.mel.ForwardRows(joined)
	if err != nil {
		return nil, fmt.Errorf("native: decoder mel projection: %w", err)
	}

	logits, err := d.stop.ForwardRows(joined)
	if err != nil {
		return nil, fmt.Errorf("native: decoder stop projection: %w", err)
	}

	outs := make([]StepOutput, len(states))

	for i, s := range states {
		frame := append([]float32(nil), frames[i]...)
		logit := logits[i][0]
		prob := tensor.Sigmoid(logit)

		s.PrevFrame = frame
		s.Steps++

		switch {
		case prob > d.cfg.StopThreshold:
			s.Phase, s.Cause = PhaseStopped, StopLogit
		case s.Steps >= d.cfg.MaxDecoderSteps:
			s.Phase, s.Cause = PhaseStopped, StopStepCap
		}

		outs[i] = StepOutput{
			Frame:     frame,
			StopLogit: logit,
			StopProb:  prob,
			Attention: weights[i],
			Step:      s.Steps,
			Stopped:   s.Phase == PhaseStopped,
			Cause:     s.Cause,
		}
	}

	return outs, nil
}

// Stop forces a decoding state into PhaseStopped without a cause. It is
// used when a caller abandons a decode early.
func (d *Decoder) Stop(state *DecoderState) {
	state.Phase = PhaseStopped
}

func (d *Decoder) checkState(s *DecoderState) error {
	if s == nil {
		return ErrNotStarted
	}

	switch s.Phase {
	case PhaseDecoding:
	case PhaseStopped:
		return ErrStopped
	default:
		return ErrNotStarted
	}

	if err := checkWidth("previous frame", len(s.PrevFrame), d.cfg.MelBins); err != nil {
		return err
	}

	if err := checkWidth("previous context", len(s.PrevContext), d.cfg.EncoderDim); err != nil {
		return err
	}

	if err := checkWidth("conditioning vector", len(s.cond), d.cfg.ConditionDim); err != nil {
		return err
	}

	if len(s.H) != d.cfg.DecoderLayers || len(s.C) != d.cfg.DecoderLayers {
		return &ShapeMismatchError{What: "recurrent layer count", Want: d.cfg.DecoderLayers, Got: len(s.H)}
	}

	for l := range s.H {
		if err := checkWidth("hidden state", len(s.H[l]), d.cfg.DecoderHidden); err != nil {
			return err
		}

		if err := checkWidth("cell state", len(s.C[l]), d.cfg.DecoderHidden); err != nil {
			return err
		}
	}

	return nil
}
