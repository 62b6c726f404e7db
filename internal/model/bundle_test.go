package model

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-voicetech-tts/internal/native"
)

func tinyConfig() *native.Config {
	return &native.Config{
		NumLanguages:    11,
		NumAccents:      5,
		NumStyles:       3,
		EmbeddingDim:    4,
		LanguageDim:     3,
		EncoderHidden:   5,
		EncoderLayers:   1,
		EncoderDim:      6,
		AccentDim:       3,
		StyleDim:        2,
		ConditionDim:    8,
		PrenetDim:       3,
		DecoderHidden:   5,
		DecoderLayers:   1,
		MelBins:         7,
		StopThreshold:   0.5,
		MaxDecoderSteps: 10,
	}
}

func initTiny(t *testing.T, dir string, seed uint64) Manifest {
	t.Helper()

	m, err := Init(InitOptions{Dir: dir, Seed: seed, Config: tinyConfig(), Speakers: 2})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	return m
}

// ---------------------------------------------------------------------------
// Init / Load
// ---------------------------------------------------------------------------

func TestInitAndLoad(t *testing.T) {
	dir := t.TempDir()
	m := initTiny(t, dir, 7)

	if m.Weights.SHA256 == "" || m.Vocabulary.SHA256 == "" {
		t.Fatalf("manifest missing checksums: %+v", m)
	}

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if b.Model.Config() != m.Model {
		t.Fatalf("model config = %+v, want %+v", b.Model.Config(), m.Model)
	}

	if b.Vocabulary.Size() != m.Model.VocabSize {
		t.Fatalf("vocab size = %d, want %d", b.Vocabulary.Size(), m.Model.VocabSize)
	}

	info := b.Info()
	if info.Name != "voicetech-multilingual" || info.Speakers != 2 {
		t.Fatalf("info = %+v", info)
	}

	if len(info.Languages) != 11 || len(info.Accents) != 5 || len(info.Styles) != 3 {
		t.Fatalf("info enumerations = %d/%d/%d", len(info.Languages), len(info.Accents), len(info.Styles))
	}

	if info.Parameters <= 0 {
		t.Fatalf("parameters = %d", info.Parameters)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	initTiny(t, dir, 1)

	if _, err := Init(InitOptions{Dir: dir, Config: tinyConfig()}); err == nil {
		t.Fatal("expected error for existing bundle")
	}

	if _, err := Init(InitOptions{Dir: dir, Config: tinyConfig(), Force: true}); err != nil {
		t.Fatalf("Init with Force: %v", err)
	}
}

func TestInitSameSeedSameWeights(t *testing.T) {
	a := initTiny(t, t.TempDir(), 3)
	b := initTiny(t, t.TempDir(), 3)
	c := initTiny(t, t.TempDir(), 4)

	if a.Weights.SHA256 != b.Weights.SHA256 {
		t.Fatal("same seed produced different weights")
	}

	if a.Weights.SHA256 == c.Weights.SHA256 {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestLoadMissingManifest(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("err = %v, want ErrNoManifest", err)
	}
}

func TestLoadRejectsDimensionDrift(t *testing.T) {
	dir := t.TempDir()
	m := initTiny(t, dir, 1)

	m.Model.MaxDecoderSteps = 99
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "disagree") {
		t.Fatalf("err = %v, want dimension disagreement", err)
	}
}

func TestParseManifestRequiresFiles(t *testing.T) {
	if _, err := ParseManifest([]byte("name: x\nvocabulary:\n  path: v.txt\n")); err == nil {
		t.Fatal("expected error for missing weights path")
	}

	if _, err := ParseManifest([]byte("weights:\n  path: w\nvocabulary:\n  path: v\nspeakers: -1\n")); err == nil {
		t.Fatal("expected error for negative speakers")
	}
}

// ---------------------------------------------------------------------------
// Verify
// ---------------------------------------------------------------------------

func TestVerifyPasses(t *testing.T) {
	dir := t.TempDir()
	initTiny(t, dir, 2)

	var out, errOut bytes.Buffer
	if err := Verify(VerifyOptions{Dir: dir, Stdout: &out, Stderr: &errOut}); err != nil {
		t.Fatalf("Verify: %v\n%s", err, errOut.String())
	}

	if got := strings.Count(out.String(), "PASS"); got != 5 {
		t.Fatalf("PASS lines = %d, want 5:\n%s", got, out.String())
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	m := initTiny(t, dir, 2)

	f, err := os.OpenFile(m.WeightsPath(dir), os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open weights: %v", err)
	}

	_, _ = f.Write([]byte{0})
	_ = f.Close()

	var errOut bytes.Buffer

	err = Verify(VerifyOptions{Dir: dir, Stderr: &errOut})
	if err == nil || !strings.Contains(err.Error(), "weights checksum") {
		t.Fatalf("err = %v, want weights checksum failure", err)
	}
}

func TestVerifyReportsShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	m := initTiny(t, dir, 2)

	m.Model.MelBins = 9
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	var errOut bytes.Buffer

	err := Verify(VerifyOptions{Dir: dir, Stderr: &errOut})
	if err == nil || !strings.Contains(err.Error(), "weight keys") {
		t.Fatalf("err = %v, want weight keys failure", err)
	}

	if !strings.Contains(errOut.String(), "decoder.mel.weight") {
		t.Fatalf("stderr does not name the mis-shaped weight:\n%s", errOut.String())
	}
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

func TestPullFromHTTP(t *testing.T) {
	src := t.TempDir()
	initTiny(t, src, 5)

	ts := httptest.NewServer(http.FileServer(http.Dir(src)))
	defer ts.Close()

	dst := t.TempDir()

	var out bytes.Buffer
	if _, err := Pull(context.Background(), PullOptions{BaseURL: ts.URL, OutDir: dst, Stdout: &out}); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	if _, err := Load(dst); err != nil {
		t.Fatalf("Load pulled bundle: %v", err)
	}

	out.Reset()

	if _, err := Pull(context.Background(), PullOptions{BaseURL: ts.URL + "/", OutDir: dst, Stdout: &out}); err != nil {
		t.Fatalf("second Pull: %v", err)
	}

	if strings.Count(out.String(), "skip") != 2 {
		t.Fatalf("second pull should skip both files:\n%s", out.String())
	}
}

func TestPullRejectsChecksumMismatch(t *testing.T) {
	src := t.TempDir()
	m := initTiny(t, src, 5)

	m.Vocabulary.SHA256 = strings.Repeat("0", 64)
	if err := WriteManifest(src, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	ts := httptest.NewServer(http.FileServer(http.Dir(src)))
	defer ts.Close()

	dst := t.TempDir()

	_, err := Pull(context.Background(), PullOptions{BaseURL: ts.URL, OutDir: dst})
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("err = %v, want checksum mismatch", err)
	}

	if _, err := os.Stat(filepath.Join(dst, ManifestFile)); !os.IsNotExist(err) {
		t.Fatal("manifest written despite failed pull")
	}
}

func TestPullAccessDenied(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := Pull(context.Background(), PullOptions{BaseURL: ts.URL, OutDir: t.TempDir()})

	var denied *ErrAccessDenied
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want *ErrAccessDenied", err)
	}
}
