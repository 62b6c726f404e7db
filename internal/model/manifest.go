// Package model manages on-disk model bundles: a manifest.yaml, a
// safetensors weights file and a vocabulary file.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/go-voicetech-tts/internal/native"
)

const (
	ManifestFile       = "manifest.yaml"
	DefaultWeightsFile = "model.safetensors"
	DefaultVocabFile   = "vocab.txt"
)

// Manifest describes a bundle. File paths are relative to the bundle
// directory.
type Manifest struct {
	Name       string        `yaml:"name"`
	Version    string        `yaml:"version"`
	Created    string        `yaml:"created,omitempty"`
	Weights    BundleFile    `yaml:"weights"`
	Vocabulary BundleFile    `yaml:"vocabulary"`
	Speakers   int           `yaml:"speakers"`
	Model      native.Config `yaml:"model"`
}

type BundleFile struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256,omitempty"`
}

var ErrNoManifest = errors.New("model: bundle has no manifest.yaml")

// ReadManifest loads dir/manifest.yaml.
func ReadManifest(dir string) (Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: %s", ErrNoManifest, dir)
		}

		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}

	return ParseManifest(b)
}

// ParseManifest decodes manifest YAML and checks required fields.
func ParseManifest(b []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}

	if m.Weights.Path == "" {
		return Manifest{}, errors.New("manifest: weights.path is required")
	}

	if m.Vocabulary.Path == "" {
		return Manifest{}, errors.New("manifest: vocabulary.path is required")
	}

	if m.Speakers < 0 {
		return Manifest{}, fmt.Errorf("manifest: speakers must be >= 0, got %d", m.Speakers)
	}

	return m, nil
}

// WriteManifest writes m to dir/manifest.yaml.
func WriteManifest(dir string, m Manifest) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ManifestFile), b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

func (m Manifest) WeightsPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(m.Weights.Path))
}

func (m Manifest) VocabularyPath(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(m.Vocabulary.Path))
}
