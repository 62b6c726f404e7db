// Package bench provides benchmarking primitives for the voicetech bench command.
package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/go-voicetech-tts/internal/tts"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and audio metadata for a single synthesis run.
type RunResult struct {
	Index         int
	Cold          bool // true for the first run (cold-start)
	Duration      time.Duration
	AudioDuration time.Duration
	Frames        int
	Chunks        int
	StopCause     string
	RTF           float64
}

// FramesPerSecond is the decoder throughput of the run.
func (r RunResult) FramesPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}

	return float64(r.Frames) / r.Duration.Seconds()
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	MeanRTF float64
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Summarize computes Stats over runs. The cold run is excluded when warm
// runs exist.
func Summarize(runs []RunResult) Stats {
	warm := make([]RunResult, 0, len(runs))
	for _, r := range runs {
		if !r.Cold {
			warm = append(warm, r)
		}
	}

	if len(warm) == 0 {
		warm = runs
	}

	durations := make([]time.Duration, len(warm))

	var rtf float64

	for i, r := range warm {
		durations[i] = r.Duration
		rtf += r.RTF
	}

	st := ComputeStats(durations)
	if len(warm) > 0 {
		st.MeanRTF = rtf / float64(len(warm))
	}

	return st
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// Synthesizer is the part of tts.Service the bench drives.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error)
	SynthesizeChunked(ctx context.Context, req tts.Request) (*tts.Audio, error)
}

// Options controls Run.
type Options struct {
	Runs    int
	Request tts.Request
	Chunk   bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Run synthesizes opts.Request opts.Runs times and times each run. The
// first run is marked cold.
func Run(ctx context.Context, s Synthesizer, opts Options) ([]RunResult, error) {
	if s == nil {
		return nil, errors.New("bench: nil synthesizer")
	}

	if opts.Runs < 1 {
		return nil, fmt.Errorf("bench: runs must be >= 1, got %d", opts.Runs)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runs := make([]RunResult, 0, opts.Runs)

	for i := range opts.Runs {
		start := now()

		var (
			a   *tts.Audio
			err error
		)

		if opts.Chunk {
			a, err = s.SynthesizeChunked(ctx, opts.Request)
		} else {
			a, err = s.Synthesize(ctx, opts.Request)
		}

		if err != nil {
			return runs, fmt.Errorf("run %d: %w", i+1, err)
		}

		elapsed := now().Sub(start)
		audioDur := a.Duration()

		runs = append(runs, RunResult{
			Index:         i,
			Cold:          i == 0,
			Duration:      elapsed,
			AudioDuration: audioDur,
			Frames:        a.Frames,
			Chunks:        a.Chunks,
			StopCause:     a.StopCause.String(),
			RTF:           CalcRTF(elapsed, audioDur),
		})
	}

	return runs, nil
}

// ---------------------------------------------------------------------------
// RTF helpers
// ---------------------------------------------------------------------------

// CalcRTF returns synthesis_duration / audio_duration.
// Returns 0 if audioDur is zero to avoid division by zero.
func CalcRTF(synthDur, audioDur time.Duration) float64 {
	if audioDur <= 0 {
		return 0
	}
	return float64(synthDur) / float64(audioDur)
}

// CheckRTFThreshold returns an error if meanRTF > threshold.
// A threshold of 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %12s  %7s  %10s  %8s  %s\n", "Run", "Cold", "MS", "Audio(ms)", "Frames", "Frames/s", "RTF", "Stop")
	fmt.Fprintln(sb, strings.Repeat("-", 82))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %12.1f  %7d  %10.1f  %8.3f  %s\n",
			r.Index+1,
			cold,
			float64(r.Duration.Microseconds())/1000,
			float64(r.AudioDuration.Microseconds())/1000,
			r.Frames,
			r.FramesPerSecond(),
			r.RTF,
			r.StopCause,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 82))
	fmt.Fprintf(sb, "%-12s  %10.1f  (min)\n", "", float64(stats.Min.Microseconds())/1000)
	fmt.Fprintf(sb, "%-12s  %10.1f  (mean)\n", "", float64(stats.Mean.Microseconds())/1000)
	fmt.Fprintf(sb, "%-12s  %10.1f  (max)\n", "", float64(stats.Max.Microseconds())/1000)
	fmt.Fprintf(sb, "%-12s  %10.3f  (mean RTF)\n", "", stats.MeanRTF)

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index           int     `json:"index"`
	Cold            bool    `json:"cold"`
	DurationMS      float64 `json:"duration_ms"`
	AudioMS         float64 `json:"audio_ms"`
	Frames          int     `json:"frames"`
	Chunks          int     `json:"chunks"`
	FramesPerSecond float64 `json:"frames_per_second"`
	StopCause       string  `json:"stop_cause"`
	RTF             float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS   float64 `json:"min_ms"`
	MeanMS  float64 `json:"mean_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanRTF float64 `json:"mean_rtf"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:   float64(stats.Min.Microseconds()) / 1000,
			MeanMS:  float64(stats.Mean.Microseconds()) / 1000,
			MaxMS:   float64(stats.Max.Microseconds()) / 1000,
			MeanRTF: stats.MeanRTF,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:           r.Index,
			Cold:            r.Cold,
			DurationMS:      float64(r.Duration.Microseconds()) / 1000,
			AudioMS:         float64(r.AudioDuration.Microseconds()) / 1000,
			Frames:          r.Frames,
			Chunks:          r.Chunks,
			FramesPerSecond: r.FramesPerSecond(),
			StopCause:       r.StopCause,
			RTF:             r.RTF,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
