// Package server exposes cue selection over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/kikiluvv/cuepoint/internal/config"
	"github.com/kikiluvv/cuepoint/internal/logging"
	"github.com/kikiluvv/cuepoint/internal/pipeline"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Runner runs one cue selection
type Runner interface {
	Run(ctx context.Context, uri string, opts pipeline.Options) (*pipeline.Report, error)
}

// Server serves POST /cues and a health check on GET /
type Server struct {
	logger   zerolog.Logger
	runner   Runner
	defaults pipeline.Options
	cfg      config.ServerConfig
}

// New creates a server. defaults fill in any selection setting a request
// leaves out.
func New(logger zerolog.Logger, runner Runner, defaults pipeline.Options, cfg config.ServerConfig) *Server {
	return &Server{
		logger:   logging.WithComponent(logger, "server"),
		runner:   runner,
		defaults: defaults,
		cfg:      cfg,
	}
}

// Handler returns the routed handler wrapped with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /cues", s.handleCues)
	mux.HandleFunc("GET /{$}", s.handleHealth)
	return s.withLogging(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
