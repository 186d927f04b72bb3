// Package api exposes an AO process over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/aoproc/internal/events"
	"github.com/mattjoyce/aoproc/internal/process"
	"github.com/mattjoyce/aoproc/internal/state"
)

// DefaultMaxBodyBytes bounds POST /handle bodies.
const DefaultMaxBodyBytes = 1 << 20

// Host is the process surface the server drives.
type Host interface {
	Handle(raw string) string
	ClearState() bool
	Store() *state.Store
}

// JournalReader serves GET /journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]process.Record, error)
}

var _ Host = (*process.Process)(nil)

// Config holds API server configuration
type Config struct {
	Listen       string
	MaxBodyBytes int64
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	host      Host
	events    *events.Hub
	journal   JournalReader
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

type Option func(*Server)

// WithEvents enables GET /events backed by hub.
func WithEvents(hub *events.Hub) Option {
	return func(s *Server) { s.events = hub }
}

// WithJournal enables GET /journal.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// WithGatherer enables GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a new API server instance
func New(config Config, host Host, logger *slog.Logger, opts ...Option) *Server {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:    config,
		host:      host,
		logger:    logger,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/handle", s.handleMessage)
	r.Get("/state", s.handleGetState)
	r.Delete("/state", s.handleClearState)
	r.Get("/journal", s.handleJournal)
	if s.events != nil {
		r.Get("/events", s.handleEvents)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
