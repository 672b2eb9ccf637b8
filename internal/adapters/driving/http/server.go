package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/core/ports/driving"
)

// multipartOverhead is added to the upload limit to leave room for form boundaries
const multipartOverhead int64 = 1 << 20

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping calls f(ctx)
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	docService driving.DocumentService
	pipeline   driving.PipelineService
	tokens     driven.AuthAdapter

	maxUploadSize  int64
	allowedOrigins []string

	// Infrastructure health checks keyed by component name
	checks map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadSize  int64
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadSize:  10 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	docService driving.DocumentService,
	pipeline driving.PipelineService,
	tokens driven.AuthAdapter,
	checks map[string]Pinger, // can be nil
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = DefaultConfig().MaxUploadSize
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		docService:     docService,
		pipeline:       pipeline,
		tokens:         tokens,
		maxUploadSize:  maxUpload,
		allowedOrigins: cfg.AllowedOrigins,
		checks:         checks,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.tokens)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Document endpoints (authenticated)
	s.router.Handle("POST /api/v1/documents",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleUploadDocument)))
	s.router.Handle("GET /api/v1/documents",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListDocuments)))
	s.router.Handle("GET /api/v1/documents/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetDocument)))
	s.router.Handle("GET /api/v1/documents/{id}/similar",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSimilarDocuments)))
	s.router.Handle("GET /api/v1/documents/{id}/clauses/{n}/similar",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSimilarClauses)))
	s.router.Handle("POST /api/v1/documents/{id}/process",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleProcessDocument)))
}

// Handler returns the router wrapped in the global middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.allowedOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
