package text

import (
	"strings"
	"unicode/utf8"
)

// ChunkBySentence splits text at sentence terminators (. ! ? । ॥) and
// greedily groups consecutive sentences into chunks of at most maxChars
// runes. maxChars <= 0 disables splitting. A sentence longer than maxChars
// forms its own chunk.
func ChunkBySentence(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{strings.TrimSpace(text)}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)

		switch {
		case size == 0:
		case size+1+n > maxChars:
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		default:
			current.WriteByte(' ')
			size++
		}

		current.WriteString(s)
		size += n
	}

	if size > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', danda, doubleDanda:
		return true
	}

	return false
}

// splitSentences keeps each terminator attached to its sentence and drops
// empty segments.
func splitSentences(text string) []string {
	var sentences []string

	start := 0

	for i, r := range text {
		if !isTerminator(r) {
			continue
		}

		end := i + utf8.RuneLen(r)
		if s := strings.TrimSpace(text[start:end]); s != "" && !onlyTerminators(s) {
			sentences = append(sentences, s)
		} else if s != "" && len(sentences) > 0 {
			sentences[len(sentences)-1] += s
		}

		start = end
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func onlyTerminators(s string) bool {
	for _, r := range s {
		if !isTerminator(r) {
			return false
		}
	}

	return true
}
