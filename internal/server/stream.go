package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const streamReadTimeout = 120 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(*http.Request) bool {
		return true
	},
}

// StreamMessage is the envelope of every JSON message on /stream, in both
// directions.
type StreamMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StreamFrame carries one mel frame as soon as the decoder emits it.
type StreamFrame struct {
	Step  int       `json:"step"`
	Frame []float32 `json:"frame"`
}

// StreamDone closes a synthesis. It follows the binary WAV message.
type StreamDone struct {
	Frames     int     `json:"frames"`
	StopCause  string  `json:"stop_cause"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Language   string  `json:"language"`
	AccentID   int     `json:"accent_id"`
	StyleID    int     `json:"style_id"`
}

// StreamError reports a failed request. The connection stays open.
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// handleStream godoc
//
// @Summary      Stream mel frames over a websocket
// @Description  Send {"type":"synthesize","payload":SynthesizeRequest}. The server answers with one "frame" message per decoder step, a binary WAV message and a final "done" message. "ping" is answered with "pong".
// @Tags         synthesis
// @Router       /stream [get]
func (h *handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	log := h.log.With(slog.String("request_id", RequestID(r.Context())))
	log.Info("stream connected", slog.String("remote", conn.RemoteAddr().String()))

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("stream read failed", slog.String("error", err.Error()))
			} else {
				log.Info("stream closed")
			}

			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		switch msg.Type {
		case "ping":
			_ = h.send(conn, "pong", nil)

		case "synthesize":
			var req SynthesizeRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				_ = h.sendError(conn, StreamError{Code: "invalid_payload", Message: err.Error(), Status: http.StatusBadRequest})
				continue
			}

			if err := h.streamOne(r.Context(), conn, req, log); err != nil {
				log.Warn("stream write failed", slog.String("error", err.Error()))
				return
			}

		default:
			_ = h.sendError(conn, StreamError{Code: "unknown_type", Message: "unknown message type: " + msg.Type, Status: http.StatusBadRequest})
		}
	}
}

// streamOne runs a single synthesis on conn. Only write failures are
// returned; synthesis failures are reported to the client.
func (h *handler) streamOne(ctx context.Context, conn *websocket.Conn, req SynthesizeRequest, log *slog.Logger) error {
	if h.synth == nil {
		return h.sendError(conn, StreamError{Code: "model_not_loaded", Message: "model not loaded", Status: http.StatusServiceUnavailable})
	}

	if status, body := h.checkRequest(req); status != 0 {
		return h.sendError(conn, StreamError{Code: codeFor(status), Message: body.Error, Status: status})
	}

	release, ok := h.acquire(ctx)
	if !ok {
		return ctx.Err()
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, h.opts.requestTimeout)
	defer cancel()

	start := time.Now()

	var writeErr error

	audio, err := h.synth.SynthesizeStream(ctx, req.toRequest(), func(step int, frame []float32) error {
		writeErr = h.send(conn, "frame", StreamFrame{Step: step, Frame: frame})
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}

	if err != nil {
		status, body := errorStatus(err)
		log.Info("stream synthesis failed", slog.Int("status", status), slog.String("error", err.Error()))

		return h.sendError(conn, StreamError{Code: codeFor(status), Message: body.Error, Status: status})
	}

	wav, err := audio.WAV()
	if err != nil {
		return h.sendError(conn, StreamError{Code: "internal", Message: err.Error(), Status: http.StatusInternalServerError})
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, wav); err != nil {
		return err
	}

	log.Info("stream synthesis complete",
		slog.String("language", audio.Selection.Language.Code),
		slog.Int("frames", audio.Frames),
		slog.String("stop_cause", audio.StopCause.String()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return h.send(conn, "done", StreamDone{
		Frames:     audio.Frames,
		StopCause:  audio.StopCause.String(),
		Duration:   audio.Duration().Seconds(),
		SampleRate: audio.SampleRate,
		Language:   audio.Selection.Language.Code,
		AccentID:   audio.Selection.Accent.ID,
		StyleID:    audio.Selection.Style.ID,
	})
}

func (h *handler) send(conn *websocket.Conn, typ string, payload any) error {
	msg := StreamMessage{Type: typ}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		msg.Payload = raw
	}

	return conn.WriteJSON(msg)
}

func (h *handler) sendError(conn *websocket.Conn, e StreamError) error {
	return h.send(conn, "error", e)
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusRequestEntityTooLarge:
		return "text_too_long"
	case http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusServiceUnavailable:
		return "model_not_loaded"
	default:
		return "internal"
	}
}
