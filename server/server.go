// Package server exposes the chat pipeline over HTTP: a pipe endpoint
// for frontends plus a small trace and metrics API.
package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/pipeline"
	"github.com/animalabs/ragpipe/server/store"
	"github.com/animalabs/ragpipe/trace"
)

// Config configures a new Server instance.
type Config struct {
	Pipeline    *pipeline.Pipeline
	DatabaseDSN string // Optional: database connection string (postgres:// or sqlite path)
	Logger      *zap.Logger
}

// Server is an HTTP server wrapping a chat pipeline.
type Server struct {
	pipe     *pipeline.Pipeline
	traces   store.TraceStore
	filter   *trace.Filter
	sessions *sessionRegistry
	logger   *zap.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	traceStore, err := store.NewTraceStore(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize trace store: %w", err)
	}
	logger.Info("trace store initialized")

	return &Server{
		pipe:     cfg.Pipeline,
		traces:   traceStore,
		filter:   trace.NewFilter(traceStore, logger),
		sessions: newSessionRegistry(),
		logger:   logger.Named("server"),
	}, nil
}

// Close closes the server and releases resources.
func (s *Server) Close() error {
	if err := s.traces.Close(); err != nil {
		return fmt.Errorf("close trace store: %w", err)
	}
	return nil
}

// Handler returns an http.Handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /pipe", s.handlePipe)

	mux.HandleFunc("GET /api/traces", s.handleTraceList)
	mux.HandleFunc("GET /api/traces/{id}", s.handleTraceGet)
	mux.HandleFunc("DELETE /api/traces/{id}", s.handleTraceDelete)
	mux.HandleFunc("GET /api/metrics/summary", s.handleMetricsSummary)

	return corsMiddleware(mux)
}

// ListenAndServe starts the server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Handler())
}
