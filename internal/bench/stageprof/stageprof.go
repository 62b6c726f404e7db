// Package stageprof times each stage of the synthesis pipeline separately:
// text preparation, acoustic decoding, vocoding and WAV encoding. Stages are
// labelled for pprof so a CPU profile can be split the same way.
package stageprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/pprof"
	"time"

	"github.com/example/go-voicetech-tts/internal/audio"
	"github.com/example/go-voicetech-tts/internal/text"
	"github.com/example/go-voicetech-tts/internal/tts"
)

const defaultMaxTokens = 150

// Stage names, also used as pprof label values.
const (
	StagePrepare = "prepare"
	StageDecode  = "decode"
	StageVocode  = "vocode"
	StageEncode  = "encode"
)

type Timings struct {
	Prepare time.Duration
	Decode  time.Duration
	Vocode  time.Duration
	Encode  time.Duration
	Total   time.Duration
	Samples int
	Frames  int
	Chunks  int
}

func (t *Timings) add(o Timings) {
	t.Prepare += o.Prepare
	t.Decode += o.Decode
	t.Vocode += o.Vocode
	t.Encode += o.Encode
	t.Total += o.Total
	t.Samples = o.Samples
	t.Frames = o.Frames
	t.Chunks = o.Chunks
}

type Options struct {
	Request tts.Request
	Runs    int
	Warmup  int
	// Workers bounds parallel chunk decoding. Zero decodes sequentially.
	Workers int
	// CPUProfile receives a pprof CPU profile of the measured runs.
	CPUProfile io.Writer
}

// Report holds per-stage averages over the measured runs.
type Report struct {
	Runs       int
	Warmup     int
	SampleRate int
	Average    Timings
}

// AudioDuration is the length of the rendered audio.
func (r Report) AudioDuration() time.Duration {
	return audio.Duration(r.Average.Samples, r.SampleRate)
}

func (r Report) RTF() float64 {
	ad := r.AudioDuration()
	if ad <= 0 {
		return 0
	}

	return float64(r.Average.Total) / float64(ad)
}

// Profile runs the pipeline of svc stage by stage.
func Profile(ctx context.Context, svc *tts.Service, opts Options) (Report, error) {
	if svc == nil {
		return Report{}, errors.New("stageprof: nil service")
	}

	if opts.Runs < 1 {
		return Report{}, fmt.Errorf("stageprof: runs must be >= 1, got %d", opts.Runs)
	}

	for i := range opts.Warmup {
		if _, err := runOnce(ctx, svc, opts); err != nil {
			return Report{}, fmt.Errorf("warmup run %d failed: %w", i+1, err)
		}
	}

	if opts.CPUProfile != nil {
		if err := pprof.StartCPUProfile(opts.CPUProfile); err != nil {
			return Report{}, fmt.Errorf("start cpuprofile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var agg Timings

	for i := range opts.Runs {
		t, err := runOnce(ctx, svc, opts)
		if err != nil {
			return Report{}, fmt.Errorf("profiled run %d failed: %w", i+1, err)
		}

		agg.add(t)
	}

	n := time.Duration(opts.Runs)
	agg.Prepare /= n
	agg.Decode /= n
	agg.Vocode /= n
	agg.Encode /= n
	agg.Total /= n

	return Report{Runs: opts.Runs, Warmup: opts.Warmup, SampleRate: svc.SampleRate(), Average: agg}, nil
}

// Write prints r as key: value lines.
func (r Report) Write(w io.Writer) {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	a := r.Average

	fmt.Fprintf(w, "runs: %d (warmup %d)\n", r.Runs, r.Warmup)
	fmt.Fprintf(w, "chunks: %d\n", a.Chunks)
	fmt.Fprintf(w, "frames: %d\n", a.Frames)
	fmt.Fprintf(w, "audio_ms: %.2f\n", ms(r.AudioDuration()))
	fmt.Fprintf(w, "avg_prepare_ms: %.2f\n", ms(a.Prepare))
	fmt.Fprintf(w, "avg_decode_ms: %.2f\n", ms(a.Decode))
	fmt.Fprintf(w, "avg_vocode_ms: %.2f\n", ms(a.Vocode))
	fmt.Fprintf(w, "avg_encode_ms: %.2f\n", ms(a.Encode))
	fmt.Fprintf(w, "avg_total_ms: %.2f\n", ms(a.Total))
	fmt.Fprintf(w, "rtf: %.3f\n", r.RTF())

	if a.Total > 0 {
		share := func(d time.Duration) float64 { return 100 * float64(d) / float64(a.Total) }
		fmt.Fprintf(w, "share_prepare_pct: %.2f\n", share(a.Prepare))
		fmt.Fprintf(w, "share_decode_pct: %.2f\n", share(a.Decode))
		fmt.Fprintf(w, "share_vocode_pct: %.2f\n", share(a.Vocode))
		fmt.Fprintf(w, "share_encode_pct: %.2f\n", share(a.Encode))
	}
}

func runOnce(ctx context.Context, svc *tts.Service, opts Options) (Timings, error) {
	var out Timings
	startTotal := time.Now()

	engine := svc.Engine()
	req := opts.Request

	var (
		chunks  []text.Chunk
		prepErr error
	)

	pprof.Do(ctx, pprof.Labels("stage", StagePrepare), func(context.Context) {
		start := time.Now()

		var normalized string

		normalized, prepErr = text.Normalize(req.Text, req.Language)
		if prepErr == nil {
			chunks, prepErr = text.PrepareChunks(normalized, engine.Tokenizer(), maxTokens(engine))
		}

		out.Prepare = time.Since(start)
	})

	if prepErr != nil {
		return out, fmt.Errorf("prepare chunks: %w", prepErr)
	}

	reqs := make([]tts.Request, len(chunks))
	for i, c := range chunks {
		reqs[i] = req
		reqs[i].Text = c.Text
	}

	var (
		results []tts.BatchResult
		frames  [][][]float32
		decErr  error
	)

	pprof.Do(ctx, pprof.Labels("stage", StageDecode), func(ctx context.Context) {
		start := time.Now()
		results = engine.SynthesizeParallel(ctx, reqs, opts.Workers)
		out.Decode = time.Since(start)
	})

	for i, r := range results {
		if r.Err != nil {
			decErr = fmt.Errorf("chunk %d: %w", i, r.Err)
			break
		}

		frames = append(frames, r.Result.Frames)
		out.Frames += len(r.Result.Frames)
	}

	if decErr != nil {
		return out, fmt.Errorf("decode: %w", decErr)
	}

	var (
		samples []float32
		vocErr  error
	)

	pprof.Do(ctx, pprof.Labels("stage", StageVocode), func(ctx context.Context) {
		start := time.Now()

		for _, f := range frames {
			pcm, err := svc.Vocoder().Render(ctx, f)
			if err != nil {
				vocErr = err
				return
			}

			samples = append(samples, pcm...)
		}

		out.Vocode = time.Since(start)
	})

	if vocErr != nil {
		return out, fmt.Errorf("vocode: %w", vocErr)
	}

	var encErr error

	pprof.Do(ctx, pprof.Labels("stage", StageEncode), func(context.Context) {
		start := time.Now()
		_, encErr = audio.EncodeWAV(samples, svc.SampleRate())
		out.Encode = time.Since(start)
	})

	if encErr != nil {
		return out, fmt.Errorf("encode wav: %w", encErr)
	}

	out.Total = time.Since(startTotal)
	out.Samples = len(samples)
	out.Chunks = len(chunks)

	return out, nil
}

func maxTokens(e *tts.Engine) int {
	if m, ok := e.Tokenizer().(interface{ MaxTokens() int }); ok && m.MaxTokens() > 0 {
		return m.MaxTokens()
	}

	return defaultMaxTokens
}
