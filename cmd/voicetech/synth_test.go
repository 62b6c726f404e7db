package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-voicetech-tts/internal/audio"
	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/testutil"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
)

func TestReadSynthText_PrefersFlag(t *testing.T) {
	got, err := readSynthText("नमस्ते", strings.NewReader("ignored"))
	if err != nil {
		t.Fatalf("readSynthText: %v", err)
	}

	if got != "नमस्ते" {
		t.Errorf("got %q", got)
	}
}

func TestReadSynthText_FallsBackToStdin(t *testing.T) {
	got, err := readSynthText("  ", strings.NewReader("  ধন্যবাদ\n"))
	if err != nil {
		t.Fatalf("readSynthText: %v", err)
	}

	if got != "ধন্যবাদ" {
		t.Errorf("got %q", got)
	}
}

func TestReadSynthText_NormalizesLineEndings(t *testing.T) {
	got, err := readSynthText("", strings.NewReader("नमस्ते।\r\nधन्यवाद।\r"))
	if err != nil {
		t.Fatalf("readSynthText: %v", err)
	}

	if got != "नमस्ते।\nधन्यवाद।" {
		t.Errorf("got %q", got)
	}
}

func TestReadSynthText_EmptyStdin(t *testing.T) {
	if _, err := readSynthText("", strings.NewReader(" \n\t")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestWriteSynthOutput_Stdout(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSynthOutput("-", []byte("RIFF"), &buf); err != nil {
		t.Fatalf("writeSynthOutput: %v", err)
	}

	if buf.String() != "RIFF" {
		t.Errorf("stdout = %q", buf.String())
	}

	if err := writeSynthOutput("-", nil, nil); err == nil {
		t.Error("expected error for nil stdout writer")
	}
}

func TestWriteSynthOutput_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := writeSynthOutput(path, []byte("data"), nil); err != nil {
		t.Fatalf("writeSynthOutput: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(got) != "data" {
		t.Errorf("file = %q", got)
	}
}

func TestMapSynthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		is   error
	}{
		{
			name: "validation",
			err:  &conditioning.ValidationError{Field: "language", Value: "xx"},
			want: "voicetech languages",
			is:   conditioning.ErrInvalid,
		},
		{
			name: "too long",
			err:  &tokenizer.InputTooLongError{Count: 900, Max: 500},
			want: "--chunk",
			is:   tokenizer.ErrInputTooLong,
		},
		{
			name: "empty",
			err:  tokenizer.ErrEmptyInput,
			want: "nothing speakable",
			is:   tokenizer.ErrEmptyInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapSynthError(tt.err)
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", got, tt.want)
			}

			if !errors.Is(got, tt.is) {
				t.Errorf("error %v does not wrap %v", got, tt.is)
			}
		})
	}

	other := errors.New("boom")
	if got := mapSynthError(other); got != other {
		t.Errorf("unrelated error rewritten: %v", got)
	}
}

func TestSynthCommandWritesWAV(t *testing.T) {
	bundle := testutil.TinyBundle(t, 7)
	out := filepath.Join(t.TempDir(), "hello.wav")

	_, _, err := runCLI(t, "synth",
		"--paths-bundle-dir", bundle,
		"--text", "नमस्ते दुनिया",
		"--language", "hi",
		"--accent", "1",
		"--style", "2",
		"--out", out,
	)
	if err != nil {
		t.Fatalf("synth: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	testutil.AssertValidWAV(t, data, audio.DefaultSampleRate)
}

func TestSynthCommandStdoutAndSave(t *testing.T) {
	bundle := testutil.TinyBundle(t, 7)
	outputs := t.TempDir()

	stdout, stderr, err := runCLI(t, "synth",
		"--paths-bundle-dir", bundle,
		"--paths-outputs-dir", outputs,
		"--paths-db-path", filepath.Join(outputs, "index.db"),
		"--text", "வணக்கம்",
		"--language", "ta",
		"--chunk",
		"--save",
		"--out", "-",
	)
	if err != nil {
		t.Fatalf("synth: %v", err)
	}

	testutil.AssertValidWAV(t, []byte(stdout), audio.DefaultSampleRate)

	if !strings.Contains(stderr, "saved ") {
		t.Errorf("stderr missing saved artifact name: %q", stderr)
	}

	list, _, err := runCLI(t, "outputs", "list",
		"--paths-bundle-dir", bundle,
		"--paths-outputs-dir", outputs,
		"--paths-db-path", filepath.Join(outputs, "index.db"),
	)
	if err != nil {
		t.Fatalf("outputs list: %v", err)
	}

	if !strings.Contains(list, "cli") || !strings.Contains(list, "ta") {
		t.Errorf("outputs list missing saved result:\n%s", list)
	}
}

func TestSynthCommandRejectsUnknownLanguage(t *testing.T) {
	bundle := testutil.TinyBundle(t, 7)

	_, _, err := runCLI(t, "synth",
		"--paths-bundle-dir", bundle,
		"--text", "hello",
		"--language", "fr",
		"--out", filepath.Join(t.TempDir(), "x.wav"),
	)
	if !errors.Is(err, conditioning.ErrInvalid) {
		t.Fatalf("err = %v, want conditioning.ErrInvalid", err)
	}
}

func TestSynthCommandMissingBundle(t *testing.T) {
	_, _, err := runCLI(t, "synth",
		"--paths-bundle-dir", filepath.Join(t.TempDir(), "missing"),
		"--text", "नमस्ते",
		"--out", filepath.Join(t.TempDir(), "x.wav"),
	)
	if err == nil {
		t.Fatal("expected error for missing bundle")
	}
}
