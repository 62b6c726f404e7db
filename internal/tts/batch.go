package tts

import (
	"context"
	"errors"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-voicetech-tts/internal/native"
)

// BatchResult is the outcome of one request in a batch. Exactly one of
// Result and Err is set.
type BatchResult struct {
	Result *Result
	Err    error
}

// SynthesizeBatch decodes several requests in lockstep, one StepBatch per
// step across every utterance still decoding. Utterances stop independently.
// A failing request only fails its own BatchResult. The frames produced for
// each request are identical to what Synthesize would produce for it alone.
func (e *Engine) SynthesizeBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))
	utts := make([]*utterance, len(reqs))

	for i, req := range reqs {
		u, err := e.prepare(ctx, req)
		if err != nil {
			results[i].Err = err
			continue
		}

		utts[i] = u
	}

	dec := e.model.Decoder()
	start := time.Now()

	for {
		var (
			active []int
			states []*native.DecoderState
		)

		for i, u := range utts {
			if u != nil && u.err == nil && u.state.Phase == native.PhaseDecoding {
				active = append(active, i)
				states = append(states, u.state)
			}
		}

		if len(active) == 0 {
			break
		}

		if err := ctx.Err(); err != nil {
			for _, i := range active {
				dec.Stop(utts[i].state)
				utts[i].err = err
			}

			break
		}

		outs, err := dec.StepBatch(states)
		if err != nil {
			var se *native.StateError
			if errors.As(err, &se) {
				_ = e.fail(utts[active[se.Index]], se.Err)
				continue
			}

			// States may be partially advanced; none can be trusted.
			for _, i := range active {
				_ = e.fail(utts[i], err)
			}

			break
		}

		for k, i := range active {
			_ = e.accept(utts[i], outs[k])
		}
	}

	e.logger.Debug("batch decode complete", "requests", len(reqs), "ms", time.Since(start).Milliseconds())

	for i, u := range utts {
		if u == nil {
			continue
		}

		if u.err != nil {
			results[i].Err = u.err
			continue
		}

		results[i].Result, results[i].Err = u.result()
	}

	return results
}

// SynthesizeParallel runs each request to completion on its own goroutine,
// at most workers at a time. workers <= 0 uses GOMAXPROCS. Errors are
// isolated per request; cancelling ctx fails the requests still running.
func (e *Engine) SynthesizeParallel(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Synthesize(ctx, req)
			results[i] = BatchResult{Result: res, Err: err}

			return nil
		})
	}

	_ = g.Wait()

	return results
}
