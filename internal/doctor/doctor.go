// Package doctor provides environment preflight checks for voicetech.
package doctor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// minORTMinor is the oldest ONNX Runtime 1.x release exposing C API 23,
// which the vocoder runner requests.
const minORTMinor = 23

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// BundleDir is reported in the bundle check line.
	BundleDir string
	// VerifyBundle checks manifest, checksums, vocabulary and weights.
	// Nil skips the check.
	VerifyBundle func() error
	// RuntimeVersion returns the detected ONNX Runtime version.
	RuntimeVersion VersionFunc
	// SkipRuntime skips the ONNX Runtime check (sine vocoder).
	SkipRuntime bool
	// SmokeTest runs every ONNX graph once. Nil skips the check.
	SmokeTest func() error
	// OutputsDir must exist or be creatable, and be writable.
	OutputsDir string
	// Files is a list of additional paths that must exist, such as the
	// vocoder graph.
	Files []string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- model bundle -----------------------------------------------------
	if cfg.VerifyBundle == nil {
		fmt.Fprintf(w, "%s model bundle: skipped\n", PassMark)
	} else if err := cfg.VerifyBundle(); err != nil {
		res.fail(fmt.Sprintf("model bundle %s: %v", cfg.BundleDir, err))
		fmt.Fprintf(w, "%s model bundle %s: %v\n", FailMark, cfg.BundleDir, err)
	} else {
		fmt.Fprintf(w, "%s model bundle: %s\n", PassMark, cfg.BundleDir)
	}

	// ---- ONNX Runtime -----------------------------------------------------
	switch {
	case cfg.SkipRuntime || cfg.RuntimeVersion == nil:
		fmt.Fprintf(w, "%s onnx runtime: skipped\n", PassMark)
	default:
		ver, err := cfg.RuntimeVersion()
		if err != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", err))
			fmt.Fprintf(w, "%s onnx runtime: not found (%v)\n", FailMark, err)
		} else if vErr := checkRuntimeVersion(ver); vErr != nil {
			res.fail(fmt.Sprintf("onnx runtime: %v", vErr))
			fmt.Fprintf(w, "%s onnx runtime %s: %v\n", FailMark, ver, vErr)
		} else {
			fmt.Fprintf(w, "%s onnx runtime: %s\n", PassMark, ver)
		}
	}

	// ---- files ------------------------------------------------------------
	for _, path := range cfg.Files {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("file %q: %v", path, err))
			fmt.Fprintf(w, "%s file %s: not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s file: %s\n", PassMark, path)
		}
	}

	// ---- ONNX graphs ------------------------------------------------------
	if cfg.SmokeTest != nil {
		if err := cfg.SmokeTest(); err != nil {
			res.fail(fmt.Sprintf("onnx graphs: %v", err))
			fmt.Fprintf(w, "%s onnx graphs: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s onnx graphs: ok\n", PassMark)
		}
	}

	// ---- outputs directory ------------------------------------------------
	if cfg.OutputsDir != "" {
		if err := checkWritable(cfg.OutputsDir); err != nil {
			res.fail(fmt.Sprintf("outputs dir %q: %v", cfg.OutputsDir, err))
			fmt.Fprintf(w, "%s outputs dir %s: %v\n", FailMark, cfg.OutputsDir, err)
		} else {
			fmt.Fprintf(w, "%s outputs dir: %s\n", PassMark, cfg.OutputsDir)
		}
	}

	return res
}

// checkRuntimeVersion returns an error if ver is older than 1.23. An
// "unknown" version passes: the library was found but its name carries no
// version.
func checkRuntimeVersion(ver string) error {
	if ver == "" || ver == "unknown" {
		return nil
	}

	major, minor, err := parseMajorMinor(ver)
	if err != nil {
		return fmt.Errorf("cannot parse %q: %w", ver, err)
	}
	if major != 1 {
		return fmt.Errorf("requires ONNX Runtime 1.x, got %d", major)
	}
	if minor < minORTMinor {
		return fmt.Errorf("requires ONNX Runtime >=1.%d, got 1.%d", minORTMinor, minor)
	}
	return nil
}

func parseMajorMinor(ver string) (major, minor int, err error) {
	parts := strings.SplitN(strings.TrimPrefix(ver, "v"), ".", 3)
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected version format %q", ver)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad major in %q: %w", ver, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minor in %q: %w", ver, err)
	}
	return major, minor, nil
}

// checkWritable creates dir if needed and writes a probe file into it.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}

	name := f.Name()
	_ = f.Close()

	return os.Remove(filepath.Clean(name))
}
