package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/example/go-voicetech-tts/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, r)

	return nil
}
func (c *capturingHandler) WithAttrs(_ []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(_ string) slog.Handler      { return c }

// find returns the first record with msg and its attributes.
func (c *capturingHandler) find(msg string) (slog.Record, map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range c.records {
		if r.Message != msg {
			continue
		}

		m := make(map[string]any)
		r.Attrs(func(a slog.Attr) bool {
			m[a.Key] = a.Value.Any()
			return true
		})

		return r, m, true
	}

	return slog.Record{}, nil, false
}

func TestSynthesize_LogsRequestAttributes(t *testing.T) {
	capture := &capturingHandler{}
	h := newTestHandler(t, &stubSynthesizer{}, server.WithLogger(slog.New(capture)))

	rec := postJSON(h, "/synthesize", `{"text":"Hello world.","language":"mr","accent_id":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	r, attrs, ok := capture.find("synthesis complete")
	if !ok {
		t.Fatal("no completion record")
	}

	if r.Level != slog.LevelInfo {
		t.Errorf("level = %v", r.Level)
	}

	if attrs["language"] != "mr" {
		t.Errorf("language = %v", attrs["language"])
	}

	if attrs["accent_id"] != int64(1) {
		t.Errorf("accent_id = %v (%T)", attrs["accent_id"], attrs["accent_id"])
	}

	if attrs["text_len"] != int64(len("Hello world.")) {
		t.Errorf("text_len = %v", attrs["text_len"])
	}

	if attrs["frames"] != int64(2) || attrs["stop_cause"] != "stop_logit" {
		t.Errorf("frames = %v, stop_cause = %v", attrs["frames"], attrs["stop_cause"])
	}

	if id, _ := attrs["request_id"].(string); id == "" || id != rec.Header().Get("X-Request-ID") {
		t.Errorf("request_id = %q, header %q", id, rec.Header().Get("X-Request-ID"))
	}

	if _, ok := attrs["duration_ms"]; !ok {
		t.Error("missing duration_ms")
	}
}

func TestSynthesize_LogsFailuresByClass(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		msg   string
		level slog.Level
	}{
		{"internal", errors.New("boom"), "synthesis failed", slog.LevelError},
		{"timeout", context.DeadlineExceeded, "synthesis timed out", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture := &capturingHandler{}
			h := newTestHandler(t, &stubSynthesizer{err: tt.err}, server.WithLogger(slog.New(capture)))

			postJSON(h, "/synthesize", `{"text":"hello"}`)

			r, attrs, ok := capture.find(tt.msg)
			if !ok {
				t.Fatalf("no %q record", tt.msg)
			}

			if r.Level != tt.level {
				t.Errorf("level = %v, want %v", r.Level, tt.level)
			}

			if attrs["error"] == "" || attrs["error"] == nil {
				t.Error("missing error attribute")
			}
		})
	}
}
