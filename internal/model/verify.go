package model

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/example/go-voicetech-tts/internal/native"
	"github.com/example/go-voicetech-tts/internal/safetensors"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

type VerifyOptions struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Verify checks a bundle without building the model: file checksums,
// vocabulary size, and the name and shape of every weight the model reads.
// Each check prints PASS or FAIL; the error lists the failed checks.
func Verify(opts VerifyOptions) error {
	if opts.Dir == "" {
		return errors.New("bundle dir is required")
	}

	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	m, err := ReadManifest(opts.Dir)
	if err != nil {
		return err
	}

	var failures []string

	check := func(name string, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "FAIL %s: %v\n", name, err)
			failures = append(failures, name)

			return
		}

		_, _ = fmt.Fprintf(opts.Stdout, "PASS %s\n", name)
	}

	check("weights checksum", verifyChecksum(m.WeightsPath(opts.Dir), m.Weights.SHA256))
	check("vocabulary checksum", verifyChecksum(m.VocabularyPath(opts.Dir), m.Vocabulary.SHA256))
	check("model config", m.Model.Validate())
	check("vocabulary", verifyVocabulary(m.VocabularyPath(opts.Dir), m.Model.VocabSize))
	check("weight keys", verifyWeights(m.WeightsPath(opts.Dir), m.Model))

	if len(failures) > 0 {
		return fmt.Errorf("verify failed for %d check(s): %s", len(failures), strings.Join(failures, ", "))
	}

	return nil
}

func verifyChecksum(path, expected string) error {
	actual, err := fileSHA256(path)
	if err != nil {
		return err
	}

	if expected == "" {
		return nil
	}

	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: expected %s got %s", expected, actual)
	}

	return nil
}

func verifyVocabulary(path string, want int) error {
	vocab, err := tokenizer.LoadVocabulary(path)
	if err != nil {
		return err
	}

	if vocab.Size() != want {
		return fmt.Errorf("vocabulary has %d units, manifest vocab_size is %d", vocab.Size(), want)
	}

	return nil
}

// verifyWeights reports every missing or mis-shaped weight, not just the
// first.
func verifyWeights(path string, cfg native.Config) error {
	store, err := safetensors.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	var problems []string

	for name, want := range native.WeightShapes(cfg) {
		got, ok := store.Shape(name)
		switch {
		case !ok:
			problems = append(problems, "missing "+name)
		case !slices.Equal(got, want):
			problems = append(problems, fmt.Sprintf("%s has shape %v, want %v", name, got, want))
		}
	}

	if len(problems) > 0 {
		slices.Sort(problems)
		return errors.New(strings.Join(problems, "; "))
	}

	return nil
}
