// Package server exposes the synthesis service over HTTP, a websocket frame
// stream and the standard gRPC health protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/example/go-voicetech-tts/internal/config"
	"github.com/example/go-voicetech-tts/internal/model"
	"github.com/example/go-voicetech-tts/internal/store"
	"github.com/example/go-voicetech-tts/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Synthesizer renders requests to audio. *tts.Service implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error)
	SynthesizeChunked(ctx context.Context, req tts.Request) (*tts.Audio, error)
	SynthesizeStream(ctx context.Context, req tts.Request, obs tts.FrameObserver) (*tts.Audio, error)
	Info() (model.Info, bool)
}

// ArtifactStore persists rendered WAV files. *store.Store implements it.
type ArtifactStore interface {
	Save(ctx context.Context, a store.Artifact, wav []byte) (store.Artifact, error)
	Path(ctx context.Context, name string) (string, error)
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}

// ---------------------------------------------------------------------------
// Server: wires the handler into net/http and gRPC with graceful shutdown
// ---------------------------------------------------------------------------

// Server runs the HTTP API and, when configured, the gRPC health service.
type Server struct {
	cfg             config.Config
	tts             *tts.Service
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New returns a server for cfg. A nil svc makes Start load the bundle named
// in cfg; if that fails the API still starts and reports the model as not
// loaded.
func New(cfg config.Config, svc *tts.Service) *Server {
	timeout := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		timeout = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		tts:             svc,
		shutdownTimeout: timeout,
		logger:          slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	owned := s.tts == nil

	synth := s.synthesizer()
	if owned && s.tts != nil {
		defer s.tts.Close()
	}

	artifacts, err := store.Open(s.cfg.Paths.DBPath, s.cfg.Paths.OutputsDir)
	if err != nil {
		return err
	}
	defer func() { _ = artifacts.Close() }()

	h := NewHandler(synth, artifacts,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.logger),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("http listening", "addr", s.cfg.Server.ListenAddr, "model_loaded", synth != nil)

	var (
		grpcServer *grpc.Server
		healthSrv  *health.Server
	)

	if addr := s.cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}

		grpcServer, healthSrv = newGRPCServer(synth != nil)

		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()

		s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	}

	stopGRPC := func() {
		if grpcServer != nil {
			healthSrv.Shutdown()
			grpcServer.GracefulStop()
		}
	}

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "timeout", s.shutdownTimeout.String())
		stopGRPC()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	case err := <-errCh:
		stopGRPC()

		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		_ = httpServer.Close()

		return fmt.Errorf("http listen: %w", err)
	}
}

// synthesizer returns the configured service, loading it on demand. It
// returns nil, not a typed nil, when no model is available.
func (s *Server) synthesizer() Synthesizer {
	if s.tts != nil {
		return s.tts
	}

	svc, err := tts.NewService(s.cfg)
	if err != nil {
		s.logger.Warn("model not loaded; synthesis endpoints will return 503", "error", err)
		return nil
	}

	s.tts = svc

	return svc
}
