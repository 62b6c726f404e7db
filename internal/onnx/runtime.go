package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"

	"github.com/example/go-voicetech-tts/internal/config"
)

// DefaultAPIVersion is the ORT C API version requested from the shared
// library. ONNX Runtime 1.23 is the first release that provides it.
const DefaultAPIVersion = 23

// RuntimeInfo describes the ONNX Runtime shared library in use.
type RuntimeInfo struct {
	LibraryPath string
	Version     string
	Initialized bool
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

var (
	bootstrapMu   sync.Mutex
	bootstrapInfo RuntimeInfo
)

// Bootstrap resolves the runtime library on first use and remembers it until
// Shutdown. A failed lookup is not cached, so a later call with a corrected
// config can succeed.
func Bootstrap(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	if bootstrapInfo.Initialized {
		return bootstrapInfo, nil
	}

	info, err := DetectRuntime(cfg)
	if err != nil {
		return RuntimeInfo{}, err
	}

	info.Initialized = true
	bootstrapInfo = info

	return info, nil
}

// Shutdown forgets the bootstrapped library. Vocoders close their own
// sessions; this only resets process state.
func Shutdown() error {
	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	bootstrapInfo = RuntimeInfo{}

	return nil
}

// DetectRuntime finds the shared library from, in order: the config,
// VOICETECH_ORT_LIB, ORT_LIBRARY_PATH and the usual install locations for
// the current OS. The version comes from runtime.ort_version, ORT_VERSION or
// the library file name, and is "unknown" otherwise.
func DetectRuntime(cfg config.RuntimeConfig) (RuntimeInfo, error) {
	path := firstNonEmpty(cfg.ORTLibraryPath, os.Getenv("VOICETECH_ORT_LIB"), os.Getenv("ORT_LIBRARY_PATH"))

	if path == "" {
		for _, c := range libraryCandidates(runtime.GOOS) {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	if path == "" {
		return RuntimeInfo{LibraryPath: "not found", Version: "unknown"}, errors.New("onnx: runtime library not found; set runtime.ort_library_path or VOICETECH_ORT_LIB")
	}

	if _, err := os.Stat(path); err != nil {
		return RuntimeInfo{LibraryPath: path, Version: "unknown"}, fmt.Errorf("onnx: runtime library: %w", err)
	}

	version := firstNonEmpty(cfg.ORTVersion, os.Getenv("ORT_VERSION"), versionFromPath(path), "unknown")

	return RuntimeInfo{LibraryPath: path, Version: version}, nil
}

func libraryCandidates(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"/opt/homebrew/lib/libonnxruntime.dylib", "/usr/local/lib/libonnxruntime.dylib"}
	case "windows":
		return []string{"C:/onnxruntime/lib/onnxruntime.dll"}
	default:
		return []string{
			"/usr/lib/libonnxruntime.so",
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
			"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
		}
	}
}

func versionFromPath(path string) string {
	if m := versionPattern.FindStringSubmatch(filepath.Base(path)); len(m) == 2 {
		return m[1]
	}

	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
