// Package conditioning holds the closed sets of languages, accents and
// speaking styles the acoustic model is conditioned on.
package conditioning

import (
	"errors"
	"fmt"
	"strings"
)

// Language is one supported language. Index selects its row in the
// language embedding table.
type Language struct {
	Index  int    `json:"index"  yaml:"index"`
	Code   string `json:"code"   yaml:"code"`
	Name   string `json:"name"   yaml:"name"`
	Script string `json:"script" yaml:"script"`
}

// Accent is one regional accent; ID selects its embedding row.
type Accent struct {
	ID   int    `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Style is one speaking style; ID selects its embedding row.
type Style struct {
	ID   int    `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

var languages = []Language{
	{0, "hi", "Hindi", "Devanagari"},
	{1, "bn", "Bengali", "Bengali"},
	{2, "mr", "Marathi", "Devanagari"},
	{3, "kn", "Kannada", "Kannada"},
	{4, "te", "Telugu", "Telugu"},
	{5, "bh", "Bhojpuri", "Devanagari"},
	{6, "cc", "Chhattisgarhi", "Devanagari"},
	{7, "mg", "Magahi", "Devanagari"},
	{8, "mt", "Maithili", "Devanagari"},
	{9, "ta", "Tamil", "Tamil"},
	{10, "ml", "Malayalam", "Malayalam"},
}

var accents = []Accent{
	{0, "standard"},
	{1, "northern"},
	{2, "eastern"},
	{3, "southern"},
	{4, "western"},
}

var styles = []Style{
	{0, "neutral"},
	{1, "expressive"},
	{2, "formal"},
}

const (
	NumLanguages = 11
	NumAccents   = 5
	NumStyles    = 3
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "hi"

// ErrInvalid matches every *ValidationError.
var ErrInvalid = errors.New("conditioning: invalid selection")

// ValidationError names the request field that failed validation.
type ValidationError struct {
	Field string
	Value any
	Valid string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: must be %s", e.Field, e.Value, e.Valid)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Languages returns all languages in index order.
func Languages() []Language { return append([]Language(nil), languages...) }

func Accents() []Accent { return append([]Accent(nil), accents...) }

func Styles() []Style { return append([]Style(nil), styles...) }

// LanguageByCode looks a language up by its ISO-style code, ignoring case
// and surrounding space.
func LanguageByCode(code string) (Language, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == c {
			return l, nil
		}
	}

	return Language{}, &ValidationError{Field: "language", Value: fmt.Sprintf("%q", code), Valid: "one of " + strings.Join(LanguageCodes(), ", ")}
}

// LanguageCodes returns the supported codes in index order.
func LanguageCodes() []string {
	codes := make([]string, len(languages))
	for i, l := range languages {
		codes[i] = l.Code
	}

	return codes
}

func AccentByID(id int) (Accent, error) {
	if id < 0 || id >= len(accents) {
		return Accent{}, &ValidationError{Field: "accent_id", Value: id, Valid: fmt.Sprintf("in [0, %d]", len(accents)-1)}
	}

	return accents[id], nil
}

func StyleByID(id int) (Style, error) {
	if id < 0 || id >= len(styles) {
		return Style{}, &ValidationError{Field: "style_id", Value: id, Valid: fmt.Sprintf("in [0, %d]", len(styles)-1)}
	}

	return styles[id], nil
}

// Selection is a validated language, accent and style triple.
type Selection struct {
	Language Language
	Accent   Accent
	Style    Style
}

// Resolve validates a request's conditioning fields in the order language,
// accent, style and returns the first failure.
func Resolve(language string, accentID, styleID int) (Selection, error) {
	lang, err := LanguageByCode(language)
	if err != nil {
		return Selection{}, err
	}

	accent, err := AccentByID(accentID)
	if err != nil {
		return Selection{}, err
	}

	style, err := StyleByID(styleID)
	if err != nil {
		return Selection{}, err
	}

	return Selection{Language: lang, Accent: accent, Style: style}, nil
}
