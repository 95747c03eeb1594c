package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldbooks/cashrecon/internal/api/handlers"
	"github.com/fieldbooks/cashrecon/internal/api/middleware"
	"github.com/fieldbooks/cashrecon/internal/application/service"
	"github.com/fieldbooks/cashrecon/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config       Config
	router       chi.Router
	httpServer   *http.Server
	logger       *slog.Logger
	repo         storage.Repository
	reconService *service.ReconService
}

// NewServer creates a new API server.
// If reconService is nil, the reconcile endpoints will not be available.
func NewServer(cfg Config, repo storage.Repository, reconService *service.ReconService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		router:       chi.NewRouter(),
		logger:       logger,
		repo:         repo,
		reconService: reconService,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
	}))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Historical runs
		runsHandler := handlers.NewRunsHandler(s.repo)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)

		// Match records
		matchesHandler := handlers.NewMatchesHandler(s.repo)
		r.Get("/matches", matchesHandler.List)
		r.Get("/matches/{id}", matchesHandler.Get)

		// Human review queue
		reviewHandler := handlers.NewReviewHandler(s.repo)
		r.Get("/review", reviewHandler.Queue)
		r.Post("/matches/{id}/review", reviewHandler.Decide)
		r.Get("/matches/{id}/review", reviewHandler.Decisions)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)

		// Live reconciliation jobs
		if s.reconService != nil {
			reconcileHandler := handlers.NewReconcileHandler(s.reconService)
			r.Post("/reconcile", reconcileHandler.Start)
			r.Get("/reconcile/active", reconcileHandler.ListActive)
			r.Get("/reconcile/{jobId}", reconcileHandler.Status)
			r.Delete("/reconcile/{jobId}", reconcileHandler.Cancel)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
