package conditioning

import (
	"errors"
	"testing"
)

func TestRegistrySizes(t *testing.T) {
	if got := len(Languages()); got != NumLanguages {
		t.Fatalf("languages = %d, want %d", got, NumLanguages)
	}

	if got := len(Accents()); got != NumAccents {
		t.Fatalf("accents = %d, want %d", got, NumAccents)
	}

	if got := len(Styles()); got != NumStyles {
		t.Fatalf("styles = %d, want %d", got, NumStyles)
	}

	for i, l := range Languages() {
		if l.Index != i {
			t.Fatalf("language %q index = %d, want %d", l.Code, l.Index, i)
		}
	}
}

func TestLanguageByCode(t *testing.T) {
	cases := []struct {
		code   string
		index  int
		script string
	}{
		{"hi", 0, "Devanagari"},
		{" TA ", 9, "Tamil"},
		{"mt", 8, "Devanagari"},
		{"ml", 10, "Malayalam"},
	}

	for _, tc := range cases {
		l, err := LanguageByCode(tc.code)
		if err != nil {
			t.Fatalf("LanguageByCode(%q): %v", tc.code, err)
		}

		if l.Index != tc.index || l.Script != tc.script {
			t.Fatalf("LanguageByCode(%q) = %+v", tc.code, l)
		}
	}
}

func TestResolveBoundaries(t *testing.T) {
	if _, err := Resolve("hi", 4, 2); err != nil {
		t.Fatalf("Resolve(max ids): %v", err)
	}

	cases := []struct {
		name          string
		lang          string
		accent, style int
		field         string
	}{
		{"accent 5", "hi", 5, 0, "accent_id"},
		{"accent -1", "hi", -1, 0, "accent_id"},
		{"style 3", "hi", 0, 3, "style_id"},
		{"unknown language", "fr", 0, 0, "language"},
		{"language first", "xx", 9, 9, "language"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.lang, tc.accent, tc.style)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}

			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}

			if !errors.Is(err, ErrInvalid) {
				t.Fatal("ValidationError does not match ErrInvalid")
			}
		})
	}
}
