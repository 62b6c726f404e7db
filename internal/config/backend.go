package config

import (
	"fmt"
	"strings"
)

const (
	VocoderSine = "sine"
	VocoderONNX = "onnx"
)

// NormalizeVocoder canonicalizes a vocoder backend name. Empty selects the
// built-in sine vocoder.
func NormalizeVocoder(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = VocoderSine
	}

	switch backend {
	case VocoderSine, VocoderONNX:
		return backend, nil
	case "additive":
		return VocoderSine, nil
	default:
		return "", fmt.Errorf("invalid vocoder backend %q (expected %s|%s)", raw, VocoderSine, VocoderONNX)
	}
}
