// Package tokenizer converts normalized text into token ids using a
// grapheme-aware character vocabulary.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxTokens is the default cap on tokens per utterance.
const DefaultMaxTokens = 150

var (
	ErrEmptyInput   = errors.New("tokenizer: empty input")
	ErrInputTooLong = errors.New("tokenizer: input too long")
)

// InputTooLongError reports a token count over the configured cap.
type InputTooLongError struct {
	Count int
	Max   int
}

func (e *InputTooLongError) Error() string {
	return fmt.Sprintf("tokenizer: input has %d tokens, maximum is %d", e.Count, e.Max)
}

func (e *InputTooLongError) Is(target error) bool { return target == ErrInputTooLong }

// Tokenizer encodes text into token ids.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
}

// CharTokenizer maps grapheme clusters, falling back to single code points,
// onto a Vocabulary.
type CharTokenizer struct {
	vocab     *Vocabulary
	maxTokens int
	spaceID   int64
}

type Option func(*CharTokenizer)

// WithMaxTokens overrides DefaultMaxTokens. n <= 0 keeps the default.
func WithMaxTokens(n int) Option {
	return func(t *CharTokenizer) {
		if n > 0 {
			t.maxTokens = n
		}
	}
}

func New(vocab *Vocabulary, opts ...Option) *CharTokenizer {
	t := &CharTokenizer{vocab: vocab, maxTokens: DefaultMaxTokens, spaceID: UnkID}
	if id, ok := vocab.ID(SpaceUnit); ok {
		t.spaceID = id
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *CharTokenizer) Vocabulary() *Vocabulary { return t.vocab }
func (t *CharTokenizer) MaxTokens() int          { return t.maxTokens }

// Encode returns one id per unit of text. No start or end markers are
// added. Units absent from the vocabulary become UnkID. Empty or
// whitespace-only text fails with ErrEmptyInput; more than MaxTokens ids
// fails with *InputTooLongError rather than truncating.
func (t *CharTokenizer) Encode(text string) ([]int64, error) {
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	ids := make([]int64, 0, len(text))

	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()

		if strings.TrimFunc(cluster, unicode.IsSpace) == "" {
			ids = append(ids, t.spaceID)
			continue
		}

		if id, ok := t.vocab.ID(cluster); ok {
			ids = append(ids, id)
			continue
		}

		for _, r := range g.Runes() {
			id, ok := t.vocab.ID(string(r))
			if !ok {
				id = UnkID
			}

			ids = append(ids, id)
		}
	}

	if len(ids) > t.maxTokens {
		return nil, &InputTooLongError{Count: len(ids), Max: t.maxTokens}
	}

	return ids, nil
}

// Decode maps ids back to text units. Reserved markers are dropped.
func (t *CharTokenizer) Decode(ids []int64) string {
	var b strings.Builder

	for _, id := range ids {
		if id <= UnkID && id >= PadID {
			continue
		}

		b.WriteString(t.vocab.Unit(id))
	}

	return b.String()
}
