package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/testutil"
)

func TestModelInfoPrintsJSON(t *testing.T) {
	bundle := testutil.TinyBundle(t, 3)

	out, _, err := runCLI(t, "model", "info", "--dir", bundle)
	if err != nil {
		t.Fatalf("model info: %v", err)
	}

	var info model.Info
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode info: %v\n%s", err, out)
	}

	if info.Speakers != 2 {
		t.Errorf("speakers = %d, want 2", info.Speakers)
	}

	if info.Parameters <= 0 {
		t.Errorf("parameters = %d, want > 0", info.Parameters)
	}

	if len(info.Languages) != 11 {
		t.Errorf("languages = %d, want 11", len(info.Languages))
	}
}

func TestModelInfoDefaultsToConfiguredBundle(t *testing.T) {
	bundle := testutil.TinyBundle(t, 3)

	out, _, err := runCLI(t, "model", "info", "--paths-bundle-dir", bundle)
	if err != nil {
		t.Fatalf("model info: %v", err)
	}

	if !strings.Contains(out, `"model_name"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestModelVerifyPassesAndFails(t *testing.T) {
	bundle := testutil.TinyBundle(t, 3)

	out, _, err := runCLI(t, "model", "verify", "--dir", bundle)
	if err != nil {
		t.Fatalf("model verify: %v\n%s", err, out)
	}

	if !strings.Contains(out, "PASS") {
		t.Errorf("verify output has no PASS lines:\n%s", out)
	}

	m, err := model.ReadManifest(bundle)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}

	if err := os.WriteFile(m.VocabularyPath(bundle), []byte("a\nb\n"), 0o644); err != nil {
		t.Fatalf("corrupt vocabulary: %v", err)
	}

	if _, _, err := runCLI(t, "model", "verify", "--dir", bundle); err == nil {
		t.Fatal("expected verify to fail on a corrupted bundle")
	}
}

func TestModelInitRefusesOverwrite(t *testing.T) {
	if testing.Short() {
		t.Skip("writes full-size random weights")
	}

	dir := filepath.Join(t.TempDir(), "bundle")

	out, _, err := runCLI(t, "model", "init", "--dir", dir, "--seed", "5", "--name", "cli-test")
	if err != nil {
		t.Fatalf("model init: %v", err)
	}

	if !strings.Contains(out, "wrote bundle cli-test") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, _, err := runCLI(t, "model", "init", "--dir", dir); err == nil {
		t.Fatal("expected second init without --force to fail")
	}
}

func TestModelPullFromHTTP(t *testing.T) {
	bundle := testutil.TinyBundle(t, 9)
	srv := httptest.NewServer(http.FileServer(http.Dir(bundle)))
	t.Cleanup(srv.Close)

	dst := filepath.Join(t.TempDir(), "pulled")

	out, _, err := runCLI(t, "model", "pull", "--base-url", srv.URL, "--out", dst)
	if err != nil {
		t.Fatalf("model pull: %v", err)
	}

	if !strings.Contains(out, "pulled bundle") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, _, err := runCLI(t, "model", "verify", "--dir", dst); err != nil {
		t.Fatalf("verify pulled bundle: %v", err)
	}
}

func TestModelPullRequiresBaseURL(t *testing.T) {
	_, _, err := runCLI(t, "model", "pull", "--out", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "--base-url") {
		t.Fatalf("err = %v, want --base-url error", err)
	}
}

func TestModelPullDeniedHintsAtToken(t *testing.T) {
	t.Setenv("VOICETECH_MODEL_TOKEN", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, _, err := runCLI(t, "model", "pull", "--base-url", srv.URL, "--out", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "VOICETECH_MODEL_TOKEN") {
		t.Fatalf("err = %v, want token hint", err)
	}
}
