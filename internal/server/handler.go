package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/example/go-voicetech-tts/internal/conditioning"
	"github.com/example/go-voicetech-tts/internal/store"
	"github.com/example/go-voicetech-tts/internal/tokenizer"
	"github.com/example/go-voicetech-tts/internal/tts"

	_ "github.com/example/go-voicetech-tts/internal/server/docs" // swagger spec
)

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	synth     Synthesizer
	artifacts ArtifactStore
	opts      options
	sem       chan struct{} // semaphore for worker pool
	log       *slog.Logger
}

// NewHandler returns the HTTP API. synth may be nil when no model is
// loaded; synthesis endpoints then answer 503.
func NewHandler(synth Synthesizer, artifacts ArtifactStore, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	h := &handler{
		synth:     synth,
		artifacts: artifacts,
		opts:      opts,
		log:       opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /info", h.handleInfo)
	mux.HandleFunc("GET /languages", h.handleLanguages)
	mux.HandleFunc("POST /synthesize", h.handleSynthesize)
	mux.HandleFunc("POST /Get_Inference", h.handleInference)
	mux.HandleFunc("GET /audio/{name}", h.handleAudio)
	mux.HandleFunc("GET /stream", h.handleStream)
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return withCORS(withRequestID(mux))
}

// ---------------------------------------------------------------------------
// Request and response bodies
// ---------------------------------------------------------------------------

// SynthesizeRequest is the body of POST /synthesize, POST /Get_Inference
// and each /stream message.
type SynthesizeRequest struct {
	Text      string `json:"text"                 example:"नमस्ते दुनिया"`
	Language  string `json:"language"             example:"hi"`
	AccentID  int    `json:"accent_id"            example:"0"`
	StyleID   int    `json:"style_id"             example:"0"`
	SpeakerID *int   `json:"speaker_id,omitempty"`
	// Chunk splits long text at sentence boundaries.
	Chunk bool `json:"chunk,omitempty"`
}

// SynthesizeResponse describes a stored synthesis result.
type SynthesizeResponse struct {
	Status    string  `json:"status"     example:"success"`
	Message   string  `json:"message"`
	AudioURL  string  `json:"audio_url"  example:"/audio/tts_0b7c.wav"`
	Duration  float64 `json:"duration"   example:"1.25"`
	Language  string  `json:"language"   example:"hi"`
	AccentID  int     `json:"accent_id"`
	StyleID   int     `json:"style_id"`
	Frames    int     `json:"frames"     example:"108"`
	StopCause string  `json:"stop_cause" example:"stop_logit"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Version     string `json:"version"`
}

type languagesResponse struct {
	Languages map[string]string `json:"languages"`
	Count     int               `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (r SynthesizeRequest) toRequest() tts.Request {
	lang := r.Language
	if lang == "" {
		lang = conditioning.DefaultLanguage
	}

	return tts.Request{
		Text:     r.Text,
		Language: lang,
		Accent:   r.AccentID,
		Style:    r.StyleID,
		Speaker:  r.SpeakerID,
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// handleRoot godoc
//
// @Summary  Service banner
// @Tags     meta
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   / [get]
func (h *handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "voicetech multilingual TTS",
		"version":      buildVersion(),
		"model_loaded": h.synth != nil,
		"docs":         "/swagger/index.html",
		"endpoints": []string{
			"GET /health", "GET /info", "GET /languages",
			"POST /synthesize", "POST /Get_Inference",
			"GET /audio/{name}", "GET /stream",
		},
	})
}

// handleHealth godoc
//
// @Summary  Liveness and model readiness
// @Tags     meta
// @Produce  json
// @Success  200  {object}  healthResponse
// @Router   /health [get]
func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		ModelLoaded: h.synth != nil,
		Version:     buildVersion(),
	})
}

// handleInfo godoc
//
// @Summary  Loaded model description
// @Tags     meta
// @Produce  json
// @Success  200  {object}  model.Info
// @Failure  503  {object}  errorResponse
// @Router   /info [get]
func (h *handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	if h.synth == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	info, ok := h.synth.Info()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "model bundle unavailable")
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// handleLanguages godoc
//
// @Summary  Supported languages
// @Tags     meta
// @Produce  json
// @Success  200  {object}  languagesResponse
// @Router   /languages [get]
func (h *handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	langs := conditioning.Languages()

	out := languagesResponse{Languages: make(map[string]string, len(langs)), Count: len(langs)}
	for _, l := range langs {
		out.Languages[l.Code] = l.Name
	}

	writeJSON(w, http.StatusOK, out)
}

// handleSynthesize godoc
//
// @Summary      Synthesize speech and store it
// @Description  Renders the text and saves a WAV file retrievable from audio_url.
// @Tags         synthesis
// @Accept       json
// @Produce      json
// @Param        request  body      SynthesizeRequest  true  "Text and conditioning"
// @Success      200      {object}  SynthesizeResponse
// @Failure      400      {object}  errorResponse  "Invalid field or empty text"
// @Failure      413      {object}  errorResponse  "Text too long"
// @Failure      503      {object}  errorResponse  "Model not loaded"
// @Failure      504      {object}  errorResponse  "Synthesis timed out"
// @Failure      500      {object}  errorResponse
// @Router       /synthesize [post]
func (h *handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	req, audio, wav, ok := h.synthesize(w, r)
	if !ok {
		return
	}

	art, ok := h.save(w, r, "tts", req, audio, wav)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, SynthesizeResponse{
		Status:    "success",
		Message:   "Speech synthesized successfully",
		AudioURL:  "/audio/" + art.Name,
		Duration:  audio.Duration().Seconds(),
		Language:  audio.Selection.Language.Code,
		AccentID:  audio.Selection.Accent.ID,
		StyleID:   audio.Selection.Style.ID,
		Frames:    audio.Frames,
		StopCause: audio.StopCause.String(),
	})
}

// handleInference godoc
//
// @Summary      Synthesize speech and return the WAV
// @Description  Same request as /synthesize; responds with the audio bytes. The stored copy is named in X-Audio-URL.
// @Tags         synthesis
// @Accept       json
// @Produce      audio/wav
// @Param        request  body  SynthesizeRequest  true  "Text and conditioning"
// @Success      200  {file}    binary
// @Failure      400  {object}  errorResponse
// @Failure      413  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Failure      504  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Router       /Get_Inference [post]
func (h *handler) handleInference(w http.ResponseWriter, r *http.Request) {
	req, audio, wav, ok := h.synthesize(w, r)
	if !ok {
		return
	}

	if h.artifacts != nil {
		art, ok := h.save(w, r, "inference", req, audio, wav)
		if !ok {
			return
		}

		w.Header().Set("X-Audio-URL", "/audio/"+art.Name)
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// handleAudio godoc
//
// @Summary  Download a stored WAV
// @Tags     synthesis
// @Produce  audio/wav
// @Param    name  path  string  true  "File name from audio_url"
// @Success  200  {file}    binary
// @Failure  404  {object}  errorResponse
// @Router   /audio/{name} [get]
func (h *handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	if h.artifacts == nil {
		writeError(w, http.StatusNotFound, "audio file not found")
		return
	}

	path, err := h.artifacts.Path(r.Context(), r.PathValue("name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audio file not found")
			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

// synthesize runs the shared request path of the synthesis endpoints. On
// failure it has already written the response and returns ok == false.
func (h *handler) synthesize(w http.ResponseWriter, r *http.Request) (SynthesizeRequest, *tts.Audio, []byte, bool) {
	var req SynthesizeRequest

	if h.synth == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return req, nil, nil, false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, nil, nil, false
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, nil, nil, false
	}

	if status, body := h.checkRequest(req); status != 0 {
		writeJSON(w, status, body)
		return req, nil, nil, false
	}

	release, ok := h.acquire(r.Context())
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
		return req, nil, nil, false
	}
	defer release()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()

	var (
		audio *tts.Audio
		err   error
	)

	if req.Chunk {
		audio, err = h.synth.SynthesizeChunked(ctx, req.toRequest())
	} else {
		audio, err = h.synth.Synthesize(ctx, req.toRequest())
	}

	attrs := []any{
		slog.String("request_id", RequestID(r.Context())),
		slog.String("language", req.Language),
		slog.Int("accent_id", req.AccentID),
		slog.Int("style_id", req.StyleID),
		slog.Int("text_len", len(req.Text)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}

	if err != nil {
		status, body := errorStatus(err)
		attrs = append(attrs, slog.Int("status", status), slog.String("error", err.Error()))

		switch {
		case status == http.StatusGatewayTimeout:
			h.log.WarnContext(r.Context(), "synthesis timed out", attrs...)
		case status >= 500:
			h.log.ErrorContext(r.Context(), "synthesis failed", attrs...)
		default:
			h.log.InfoContext(r.Context(), "synthesis rejected", attrs...)
		}

		writeJSON(w, status, body)

		return req, nil, nil, false
	}

	wav, err := audio.WAV()
	if err != nil {
		h.log.ErrorContext(r.Context(), "wav encoding failed", append(attrs, slog.String("error", err.Error()))...)
		writeError(w, http.StatusInternalServerError, err.Error())

		return req, nil, nil, false
	}

	h.log.InfoContext(r.Context(), "synthesis complete", append(attrs,
		slog.Int("frames", audio.Frames),
		slog.String("stop_cause", audio.StopCause.String()),
		slog.Int("wav_bytes", len(wav)),
	)...)

	return req, audio, wav, true
}

func (h *handler) save(w http.ResponseWriter, r *http.Request, kind string, req SynthesizeRequest, audio *tts.Audio, wav []byte) (store.Artifact, bool) {
	if h.artifacts == nil {
		writeError(w, http.StatusServiceUnavailable, "audio storage unavailable")
		return store.Artifact{}, false
	}

	art, err := h.artifacts.Save(r.Context(), store.Artifact{
		Kind:       kind,
		Text:       req.Text,
		Language:   audio.Selection.Language.Code,
		AccentID:   audio.Selection.Accent.ID,
		StyleID:    audio.Selection.Style.ID,
		Frames:     audio.Frames,
		StopCause:  audio.StopCause.String(),
		SampleRate: audio.SampleRate,
		Duration:   audio.Duration().Seconds(),
	}, wav)
	if err != nil {
		h.log.ErrorContext(r.Context(), "storing audio failed",
			slog.String("request_id", RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "storing audio failed")

		return store.Artifact{}, false
	}

	return art, true
}

// checkRequest applies the cheap checks that precede any model work, in the
// engine's order: language, accent and style first, then the text.
func (h *handler) checkRequest(req SynthesizeRequest) (int, errorResponse) {
	tr := req.toRequest()
	if _, err := conditioning.Resolve(tr.Language, tr.Accent, tr.Style); err != nil {
		return errorStatus(err)
	}

	if req.Text == "" {
		return http.StatusBadRequest, errorResponse{Error: "text field is required", Field: "text"}
	}

	if len(req.Text) > h.opts.maxTextBytes {
		return http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes),
			Field: "text",
		}
	}

	return 0, errorResponse{}
}

// acquire takes a worker slot, honouring cancellation while waiting.
func (h *handler) acquire(ctx context.Context) (func(), bool) {
	if h.sem == nil {
		return func() {}, true
	}

	select {
	case h.sem <- struct{}{}:
		return func() { <-h.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// errorStatus maps a synthesis error to its HTTP status and body.
func errorStatus(err error) (int, errorResponse) {
	var (
		ve      *conditioning.ValidationError
		tooLong *tokenizer.InputTooLongError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field}
	case errors.Is(err, tokenizer.ErrEmptyInput):
		return http.StatusBadRequest, errorResponse{Error: "text is empty after normalization", Field: "text"}
	case errors.As(err, &tooLong):
		return http.StatusRequestEntityTooLarge, errorResponse{Error: tooLong.Error(), Field: "text"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, errorResponse{Error: "synthesis timed out"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
