// Package text prepares raw user text for tokenization.
package text

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when nothing speakable remains after
// normalization.
var ErrEmptyText = errors.New("text is empty")

const (
	danda       = '।'
	doubleDanda = '॥'
)

// Normalize canonicalizes raw text for lang: NFC composition, Latin
// lowercasing, removal of everything except letters, combining marks,
// digits and the punctuation . , ! ? ; : । ॥, and collapsing whitespace runs
// to a single space. Zero-width joiners are kept since Indic scripts use them
// to select conjunct forms. The result is stable under repeated
// application. lang is accepted for per-language rules and is currently
// unused.
func Normalize(raw, lang string) (string, error) {
	_ = lang

	s := norm.NFC.String(raw)

	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case keep(r):
		default:
			// Dropped symbols still separate words.
			pendingSpace = pendingSpace || (b.Len() > 0 && unicode.In(r, unicode.P, unicode.S))
			continue
		}

		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}

		if r < unicode.MaxASCII || unicode.Is(unicode.Latin, r) {
			r = unicode.ToLower(r)
		}

		b.WriteRune(r)
	}

	out := norm.NFC.String(b.String())
	if strings.TrimSpace(out) == "" {
		return "", ErrEmptyText
	}

	return out, nil
}

func keep(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ';', ':', danda, doubleDanda, '\u200c', '\u200d':
		return true
	}

	return unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r)
}

// NormalizeLines canonicalizes line endings and trims surrounding space
// without touching the content.
func NormalizeLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return strings.TrimSpace(s)
}
