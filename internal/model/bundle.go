package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/example/go-voicetech-tts/internal/native"
	"github.com/example/go-voicetech-tts/internal/safetensors"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

// Bundle is a loaded, read-only model bundle.
type Bundle struct {
	Dir        string
	Manifest   Manifest
	Model      *native.Model
	Vocabulary *tokenizer.Vocabulary
}

// Load reads a bundle directory. The manifest's model dimensions must agree
// with the config stored in the weights file, when one is present.
func Load(dir string) (*Bundle, error) {
	start := time.Now()

	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	vocab, err := tokenizer.LoadVocabulary(m.VocabularyPath(dir))
	if err != nil {
		return nil, err
	}

	if vocab.Size() != m.Model.VocabSize {
		return nil, fmt.Errorf("model: vocabulary has %d units, manifest vocab_size is %d", vocab.Size(), m.Model.VocabSize)
	}

	store, err := safetensors.Open(m.WeightsPath(dir))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if stored, err := native.ConfigFromMetadata(store.Metadata()); err == nil && stored != m.Model {
		return nil, fmt.Errorf("model: manifest dimensions disagree with weights metadata (%+v vs %+v)", m.Model, stored)
	}

	mdl, err := native.LoadModelFromStore(store, m.Model)
	if err != nil {
		return nil, err
	}

	slog.Debug("model bundle loaded",
		"dir", dir,
		"name", m.Name,
		"params", mdl.ParameterCount(),
		"ms", time.Since(start).Milliseconds(),
	)

	return &Bundle{Dir: dir, Manifest: m, Model: mdl, Vocabulary: vocab}, nil
}

// InitOptions controls Init.
type InitOptions struct {
	Dir      string
	Name     string
	Version  string
	Seed     uint64
	Speakers int
	// Config overrides the production dimensions. VocabSize is always
	// taken from the vocabulary.
	Config *native.Config
	Force  bool
	Stdout io.Writer
}

// Init writes a bundle with seeded random weights and the default
// vocabulary. It refuses to overwrite an existing manifest unless Force is
// set.
func Init(opts InitOptions) (Manifest, error) {
	if opts.Dir == "" {
		return Manifest{}, fmt.Errorf("bundle dir is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Name == "" {
		opts.Name = "voicetech-multilingual"
	}

	if opts.Version == "" {
		opts.Version = "0.1.0"
	}

	if _, err := os.Stat(filepath.Join(opts.Dir, ManifestFile)); err == nil && !opts.Force {
		return Manifest{}, fmt.Errorf("bundle already exists at %s (use --force to overwrite)", opts.Dir)
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create bundle dir: %w", err)
	}

	vocab := tokenizer.DefaultVocabulary()

	cfg := native.DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	cfg.VocabSize = vocab.Size()
	if err := cfg.Validate(); err != nil {
		return Manifest{}, err
	}

	vocabPath := filepath.Join(opts.Dir, DefaultVocabFile)
	if err := writeVocabulary(vocabPath, vocab); err != nil {
		return Manifest{}, err
	}

	meta, err := cfg.Metadata()
	if err != nil {
		return Manifest{}, err
	}

	weightsPath := filepath.Join(opts.Dir, DefaultWeightsFile)
	if err := safetensors.WriteFile(weightsPath, native.RandomTensors(cfg, opts.Seed), meta); err != nil {
		return Manifest{}, err
	}

	_, _ = fmt.Fprintf(opts.Stdout, "wrote %s (seed=%d)\n", weightsPath, opts.Seed)

	m := Manifest{
		Name:       opts.Name,
		Version:    opts.Version,
		Created:    time.Now().UTC().Format(time.RFC3339),
		Weights:    BundleFile{Path: DefaultWeightsFile},
		Vocabulary: BundleFile{Path: DefaultVocabFile},
		Speakers:   opts.Speakers,
		Model:      cfg,
	}

	if m.Weights.SHA256, err = fileSHA256(weightsPath); err != nil {
		return Manifest{}, err
	}

	if m.Vocabulary.SHA256, err = fileSHA256(vocabPath); err != nil {
		return Manifest{}, err
	}

	if err := WriteManifest(opts.Dir, m); err != nil {
		return Manifest{}, err
	}

	_, _ = fmt.Fprintf(opts.Stdout, "wrote %s\n", filepath.Join(opts.Dir, ManifestFile))

	return m, nil
}

func writeVocabulary(path string, vocab *tokenizer.Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocabulary: %w", err)
	}

	if _, err := vocab.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vocabulary: %w", err)
	}

	return f.Close()
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
