package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/go-voicetech-tts/internal/bench"
	"github.com/example/go-voicetech-tts/internal/tts"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("ComputeStats(nil) = %+v", s)
	}
}

func TestSummarize_ExcludesColdRun(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 900 * time.Millisecond, RTF: 9},
		{Index: 1, Duration: 100 * time.Millisecond, RTF: 1},
		{Index: 2, Duration: 300 * time.Millisecond, RTF: 3},
	}

	s := bench.Summarize(runs)
	if s.Max != 300*time.Millisecond || s.Mean != 200*time.Millisecond {
		t.Errorf("stats = %+v", s)
	}

	if s.MeanRTF != 2 {
		t.Errorf("MeanRTF = %v, want 2", s.MeanRTF)
	}

	only := bench.Summarize(runs[:1])
	if only.Mean != 900*time.Millisecond {
		t.Errorf("cold-only mean = %v", only.Mean)
	}
}

// ---------------------------------------------------------------------------
// RTF calculation
// ---------------------------------------------------------------------------

func TestRTF_Calculation(t *testing.T) {
	// 1 second of audio synthesised in 500ms → RTF = 0.5
	rtf := bench.CalcRTF(500*time.Millisecond, time.Second)
	if rtf < 0.499 || rtf > 0.501 {
		t.Errorf("want RTF≈0.5, got %.4f", rtf)
	}
}

func TestRTF_ZeroAudioDuration(t *testing.T) {
	if rtf := bench.CalcRTF(500*time.Millisecond, 0); rtf != 0 {
		t.Errorf("want RTF=0 for zero audio duration, got %.4f", rtf)
	}
}

func TestFramesPerSecond(t *testing.T) {
	r := bench.RunResult{Frames: 50, Duration: 500 * time.Millisecond}
	if got := r.FramesPerSecond(); got != 100 {
		t.Errorf("FramesPerSecond = %v, want 100", got)
	}

	if got := (bench.RunResult{Frames: 5}).FramesPerSecond(); got != 0 {
		t.Errorf("zero duration FramesPerSecond = %v", got)
	}
}

// ---------------------------------------------------------------------------
// RTF threshold gate
// ---------------------------------------------------------------------------

func TestRTFThreshold(t *testing.T) {
	tests := []struct {
		name      string
		mean      float64
		threshold float64
		wantErr   bool
	}{
		{"exceeds", 1.5, 1.0, true},
		{"below", 0.8, 1.0, false},
		{"exact", 1.0, 1.0, false},
		{"disabled", 9999, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckRTFThreshold(tt.mean, tt.threshold)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckRTFThreshold(%v, %v) = %v", tt.mean, tt.threshold, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

type fakeSynth struct {
	calls   int
	chunked int
	err     error
}

func (f *fakeSynth) Synthesize(_ context.Context, _ tts.Request) (*tts.Audio, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return &tts.Audio{Samples: make([]float32, 22050), SampleRate: 22050, Frames: 86, Chunks: 1}, nil
}

func (f *fakeSynth) SynthesizeChunked(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	f.chunked++
	return f.Synthesize(ctx, req)
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)

	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestRun_TimesEachRun(t *testing.T) {
	synth := &fakeSynth{}

	runs, err := bench.Run(context.Background(), synth, bench.Options{
		Runs: 3,
		Now:  stepClock(250 * time.Millisecond),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(runs) != 3 || synth.calls != 3 {
		t.Fatalf("runs = %d, calls = %d", len(runs), synth.calls)
	}

	if !runs[0].Cold || runs[1].Cold {
		t.Errorf("cold flags = %v, %v", runs[0].Cold, runs[1].Cold)
	}

	for _, r := range runs {
		if r.Duration != 250*time.Millisecond || r.AudioDuration != time.Second {
			t.Errorf("run %d: duration %v audio %v", r.Index, r.Duration, r.AudioDuration)
		}

		if r.RTF < 0.249 || r.RTF > 0.251 || r.Frames != 86 || r.StopCause != "none" {
			t.Errorf("run %d = %+v", r.Index, r)
		}
	}
}

func TestRun_ChunkedAndErrors(t *testing.T) {
	synth := &fakeSynth{}
	if _, err := bench.Run(context.Background(), synth, bench.Options{Runs: 2, Chunk: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if synth.chunked != 2 {
		t.Errorf("chunked calls = %d", synth.chunked)
	}

	if _, err := bench.Run(context.Background(), synth, bench.Options{Runs: 0}); err == nil {
		t.Error("want error for zero runs")
	}

	if _, err := bench.Run(context.Background(), nil, bench.Options{Runs: 1}); err == nil {
		t.Error("want error for nil synthesizer")
	}

	boom := errors.New("boom")

	_, err := bench.Run(context.Background(), &fakeSynth{err: boom}, bench.Options{Runs: 2})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "run 1") {
		t.Errorf("err = %v", err)
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func sampleRuns() []bench.RunResult {
	return []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, RTF: 0.8, AudioDuration: time.Second, Frames: 86, StopCause: "stop_logit"},
		{Index: 1, Cold: false, Duration: 500 * time.Millisecond, RTF: 0.5, AudioDuration: time.Second, Frames: 86, StopCause: "stop_logit"},
	}
}

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs := sampleRuns()

	var buf strings.Builder
	bench.FormatTable(runs, bench.Summarize(runs), &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "rtf", "frames", "stop_logit", "mean rtf"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs := sampleRuns()

	var buf bytes.Buffer
	bench.FormatJSON(runs, bench.Summarize(runs), &buf)

	var out struct {
		Runs []struct {
			Frames    int     `json:"frames"`
			StopCause string  `json:"stop_cause"`
			AudioMS   float64 `json:"audio_ms"`
		} `json:"runs"`
		Stats struct {
			MeanRTF float64 `json:"mean_rtf"`
		} `json:"stats"`
	}

	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Runs) != 2 || out.Runs[0].Frames != 86 || out.Runs[0].AudioMS != 1000 {
		t.Errorf("runs = %+v", out.Runs)
	}

	if out.Stats.MeanRTF != 0.5 {
		t.Errorf("mean_rtf = %v", out.Stats.MeanRTF)
	}
}
