package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

// Tokenizer is the subset of tokenizer.Tokenizer needed by PrepareChunks.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
}

// Chunk is one independently synthesizable piece of a longer text.
type Chunk struct {
	Text     string
	TokenIDs []int64
}

// PrepareChunks splits normalized text into chunks whose token sequences
// each fit in maxTokens. Sentences are grouped greedily; a sentence that
// does not fit on its own is split between words. A single word that cannot
// fit is an error.
func PrepareChunks(input string, tok Tokenizer, maxTokens int) ([]Chunk, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyText
	}

	if maxTokens <= 0 {
		return nil, fmt.Errorf("text: max tokens must be > 0, got %d", maxTokens)
	}

	fits := func(s string) ([]int64, bool, error) {
		ids, err := tok.Encode(s)
		if errors.Is(err, tokenizer.ErrInputTooLong) {
			return nil, false, nil
		}

		if err != nil {
			return nil, false, err
		}

		return ids, len(ids) <= maxTokens, nil
	}

	var (
		chunks  []Chunk
		pending string
		ids     []int64
	)

	flush := func() {
		if pending != "" {
			chunks = append(chunks, Chunk{Text: pending, TokenIDs: ids})
		}

		pending, ids = "", nil
	}

	for _, piece := range splitPieces(input, fits) {
		candidate := piece
		if pending != "" {
			candidate = pending + " " + piece
		}

		got, ok, err := fits(candidate)
		if err != nil {
			return nil, err
		}

		if ok {
			pending, ids = candidate, got
			continue
		}

		flush()

		got, ok, err = fits(piece)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("text: %q does not fit in %d tokens", piece, maxTokens)
		}

		pending, ids = piece, got
	}

	flush()

	return chunks, nil
}

// splitPieces returns sentences, breaking any sentence that does not fit on
// its own into words.
func splitPieces(input string, fits func(string) ([]int64, bool, error)) []string {
	var pieces []string

	for _, s := range splitSentences(input) {
		if _, ok, err := fits(s); ok || err != nil {
			pieces = append(pieces, s)
			continue
		}

		pieces = append(pieces, strings.FieldsFunc(s, unicode.IsSpace)...)
	}

	return pieces
}
