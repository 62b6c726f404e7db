package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()

	s, err := Open(filepath.Join(dir, "db", "artifacts.db"), filepath.Join(dir, "outputs"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.Save(ctx, Artifact{Text: "नमस्ते", Language: "hi", AccentID: 1, Frames: 12, StopCause: "stop_logit", SampleRate: 22050, Duration: 0.14}, []byte("RIFFdata"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if a.ID == "" || a.Name != "tts_"+a.ID+".wav" || a.Bytes != 8 {
		t.Fatalf("saved artifact = %+v", a)
	}

	got, err := s.Get(ctx, a.Name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if got.Text != "नमस्ते" || got.AccentID != 1 || got.Frames != 12 || got.StopCause != "stop_logit" {
		t.Fatalf("Get = %+v", got)
	}

	path, err := s.Path(ctx, a.Name)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFFdata" {
		t.Fatalf("stored file = %q, %v", data, err)
	}
}

func TestSaveKind(t *testing.T) {
	s := openTestStore(t)

	a, err := s.Save(context.Background(), Artifact{Kind: "inference"}, []byte{1})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if filepath.Ext(a.Name) != ".wav" || a.Name[:10] != "inference_" {
		t.Fatalf("Name = %q", a.Name)
	}

	if _, err := s.Save(context.Background(), Artifact{}, nil); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestPathRejectsUnknownAndTraversal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "missing.wav", "../artifacts.db", ".hidden", "a/b.wav"} {
		if _, err := s.Path(ctx, name); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Path(%q) err = %v, want ErrNotFound", name, err)
		}
	}

	a, _ := s.Save(ctx, Artifact{}, []byte{1})
	if err := os.Remove(filepath.Join(s.Dir(), a.Name)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := s.Path(ctx, a.Name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Path for deleted file err = %v", err)
	}
}

func TestListAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	var names []string

	for i := range 3 {
		clock = base.Add(time.Duration(i) * time.Hour)

		a, err := s.Save(ctx, Artifact{Text: "x"}, []byte{byte(i)})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}

		names = append(names, a.Name)
	}

	list, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(list) != 3 || list[0].Name != names[2] {
		t.Fatalf("List order = %v", list)
	}

	clock = base.Add(2*time.Hour + 30*time.Minute)

	n, err := s.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}

	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), names[0])); !os.IsNotExist(err) {
		t.Fatalf("pruned file still present: %v", err)
	}

	if _, err := s.Get(ctx, names[2]); err != nil {
		t.Fatalf("newest artifact pruned: %v", err)
	}
}

func TestOpenRequiresOutputsDir(t *testing.T) {
	if _, err := Open("", ""); err == nil {
		t.Fatal("expected error without outputs dir")
	}
}

func TestPruneKeepsRowWhenFileRemovalFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	var names []string

	for i := range 3 {
		clock = base.Add(time.Duration(i) * time.Minute)

		a, err := s.Save(ctx, Artifact{Text: "x"}, []byte{byte(i)})
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}

		names = append(names, a.Name)
	}

	// A non-empty directory in place of the middle file cannot be removed.
	stuck := filepath.Join(s.Dir(), names[1])
	if err := os.Remove(stuck); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Join(stuck, "busy"), 0o755); err != nil {
		t.Fatal(err)
	}

	clock = base.Add(time.Hour)

	n, err := s.Prune(ctx, time.Second)
	if err == nil {
		t.Fatal("expected prune to fail on the stuck file")
	}

	if n != 1 {
		t.Fatalf("pruned %d before failing, want 1", n)
	}

	if _, err := s.Get(ctx, names[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("oldest artifact still indexed: %v", err)
	}

	for _, name := range names[1:] {
		if _, err := s.Get(ctx, name); err != nil {
			t.Fatalf("artifact %s lost its index row: %v", name, err)
		}
	}

	if _, err := os.Stat(filepath.Join(s.Dir(), names[2])); err != nil {
		t.Fatalf("artifact after the failure was removed: %v", err)
	}
}
