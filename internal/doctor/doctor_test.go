package doctor_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-voicetech-tts/internal/doctor"
)

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	dir := t.TempDir()
	graph := filepath.Join(dir, "vocoder.onnx")

	if err := os.WriteFile(graph, []byte("onnx"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := doctor.Config{
		BundleDir:      dir,
		VerifyBundle:   func() error { return nil },
		RuntimeVersion: func() (string, error) { return "1.23.2", nil },
		SmokeTest:      func() error { return nil },
		OutputsDir:     filepath.Join(dir, "outputs"),
		Files:          []string{graph},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	for _, want := range []string{"model bundle", "onnx runtime: 1.23.2", "onnx graphs: ok", "outputs dir"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	if strings.Contains(out.String(), doctor.FailMark) {
		t.Errorf("unexpected fail mark:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// model bundle
// ---------------------------------------------------------------------------

func TestRun_BundleVerifyFailure(t *testing.T) {
	cfg := doctor.Config{
		BundleDir:    "models/missing",
		VerifyBundle: func() error { return errors.New("weight keys") },
		SkipRuntime:  true,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when bundle verification fails")
	}

	if !hasFailureContaining(result.Failures(), "models/missing") || !hasFailureContaining(result.Failures(), "weight keys") {
		t.Errorf("failures = %v", result.Failures())
	}
}

func TestRun_NilVerifyBundleSkips(t *testing.T) {
	var out strings.Builder
	result := doctor.Run(doctor.Config{SkipRuntime: true}, &out)

	if result.Failed() {
		t.Fatalf("unexpected failures: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "model bundle: skipped") {
		t.Errorf("output = %q", out.String())
	}
}

// ---------------------------------------------------------------------------
// ONNX Runtime
// ---------------------------------------------------------------------------

func TestRun_RuntimeChecks(t *testing.T) {
	tests := []struct {
		name    string
		cfg     doctor.Config
		fail    bool
		outWant string
	}{
		{
			name:    "missing library",
			cfg:     doctor.Config{RuntimeVersion: func() (string, error) { return "", errLibraryNotFound }},
			fail:    true,
			outWant: "onnx runtime: not found",
		},
		{
			name:    "too old",
			cfg:     doctor.Config{RuntimeVersion: func() (string, error) { return "1.16.3", nil }},
			fail:    true,
			outWant: "requires ONNX Runtime >=1.23",
		},
		{
			name:    "unknown version",
			cfg:     doctor.Config{RuntimeVersion: func() (string, error) { return "unknown", nil }},
			outWant: "onnx runtime: unknown",
		},
		{
			name: "skipped",
			cfg: doctor.Config{
				SkipRuntime:    true,
				RuntimeVersion: func() (string, error) { return "", errLibraryNotFound },
			},
			outWant: "onnx runtime: skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			result := doctor.Run(tt.cfg, &out)

			if result.Failed() != tt.fail {
				t.Fatalf("Failed() = %v, want %v; failures: %v", result.Failed(), tt.fail, result.Failures())
			}

			if !strings.Contains(out.String(), tt.outWant) {
				t.Errorf("output missing %q:\n%s", tt.outWant, out.String())
			}
		})
	}
}

func TestRun_SmokeTestFailure(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		SmokeTest:   func() error { return errors.New("1 graph(s) failed: vocoder") },
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "onnx graphs") {
		t.Fatalf("failures = %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// files and outputs
// ---------------------------------------------------------------------------

func TestRun_MissingFileFails(t *testing.T) {
	cfg := doctor.Config{
		SkipRuntime: true,
		Files:       []string{"/nonexistent/vocoder.onnx"},
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for missing file")
	}

	if !hasFailureContaining(result.Failures(), "vocoder.onnx") {
		t.Errorf("failures = %v", result.Failures())
	}
}

func TestRun_OutputsDirNotWritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")

	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := doctor.Config{
		SkipRuntime: true,
		OutputsDir:  filepath.Join(blocker, "outputs"),
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !hasFailureContaining(result.Failures(), "outputs dir") {
		t.Fatalf("failures = %v", result.Failures())
	}
}

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{
		VerifyBundle:   func() error { return nil },
		RuntimeVersion: func() (string, error) { return "", errLibraryNotFound },
	}

	var out strings.Builder
	doctor.Run(cfg, &out)

	if !strings.Contains(out.String(), doctor.PassMark) {
		t.Error("output should contain pass mark")
	}

	if !strings.Contains(out.String(), doctor.FailMark) {
		t.Error("output should contain fail mark")
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	if r.Failed() {
		t.Fatal("zero Result should not be failed")
	}

	r.AddFailure("model verify: bad")

	got := r.Failures()
	if len(got) != 1 || got[0] != "model verify: bad" {
		t.Fatalf("Failures() = %v", got)
	}

	got[0] = "mutated"
	if r.Failures()[0] != "model verify: bad" {
		t.Fatal("Failures() must return a copy")
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

var errLibraryNotFound = sentinelError("library not found")

func hasFailureContaining(failures []string, substr string) bool {
	for _, f := range failures {
		if strings.Contains(f, substr) {
			return true
		}
	}

	return false
}
