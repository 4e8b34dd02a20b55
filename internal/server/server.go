// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the wiring layer — the composition root where the dependency
// chain is assembled:
//
//	runner.Manager (engines) ─┐
//	sqlite.DB (run history) ──┼→ RunService → handlers → routes
//	auth.Verifier (optional) ─┘
//
// Handlers never touch the database or the engines directly; the service
// never touches HTTP. main.go stays minimal: read config, build engines,
// call New, call Start.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/codename-co/runbox/internal/auth"
	"github.com/codename-co/runbox/internal/handler"
	"github.com/codename-co/runbox/internal/middleware"
	"github.com/codename-co/runbox/internal/repository"
	sqliteRepo "github.com/codename-co/runbox/internal/repository/sqlite"
	"github.com/codename-co/runbox/internal/runner"
	"github.com/codename-co/runbox/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port int

	// DBPath is the SQLite file recording run history. Empty disables
	// history (execution still works, /api/runs returns 503).
	DBPath string

	// JWTSecret enables bearer-token auth when set.
	JWTSecret string

	// APIKeyHash is a bcrypt hash of the accepted API key; enables
	// X-API-Key auth when set. When neither JWTSecret nor APIKeyHash is
	// configured the API is open.
	APIKeyHash string
}

// Server owns the router and the resources that must be released on
// shutdown: the database and the runner manager with its engines.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	manager *runner.Manager
}

// New assembles the full dependency chain and registers all routes.
func New(cfg Config, logger *slog.Logger, manager *runner.Manager) (*Server, error) {
	var db *sqliteRepo.DB
	if cfg.DBPath != "" {
		var err error
		db, err = sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		manager: manager,
	}

	if err := s.setupRoutes(); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and route handlers.
//
// Route structure:
//
//	GET  /healthz             → liveness check (never authenticated)
//	POST /api/execute         → run code
//	GET  /api/packages/{name} → classify a python package
//	GET  /api/runs            → run history (paginated)
//	GET  /api/runs/{id}       → one recorded run
//	GET  /api/events          → execution progress over SSE
func (s *Server) setupRoutes() error {
	// Global middleware, in order: request IDs for tracing, real client
	// IPs behind proxies, panic recovery, then our structured logging.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/healthz", handler.HandleHealthz)

	// repository.RunRepository is an interface; a nil *DB inside a non-nil
	// interface value would not be nil, so only assign when present.
	var repo repository.RunRepository
	if s.db != nil {
		repo = s.db
	}
	runService := service.NewRunService(s.manager, repo, s.logger)

	executeHandler := handler.NewExecuteHandler(runService, s.logger)
	runsHandler := handler.NewRunsHandler(runService, s.logger)
	packagesHandler := handler.NewPackagesHandler(runService, s.logger)
	eventsHandler := handler.NewEventsHandler(s.manager, s.logger)

	requireAuth, err := s.authMiddleware()
	if err != nil {
		return err
	}

	s.router.Route("/api", func(r chi.Router) {
		if requireAuth != nil {
			r.Use(requireAuth)
		}
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/packages/{name}", packagesHandler.HandleGet)
		r.Get("/runs", runsHandler.HandleList)
		r.Get("/runs/{id}", runsHandler.HandleGetByID)
		r.Get("/events", eventsHandler.HandleEvents)
	})

	return nil
}

// authMiddleware builds the auth chain from config, or returns nil when
// no credentials are configured (open API, typical for local use).
func (s *Server) authMiddleware() (func(http.Handler) http.Handler, error) {
	if s.config.JWTSecret == "" && s.config.APIKeyHash == "" {
		s.logger.Warn("no JWT secret or API key hash configured, API is unauthenticated")
		return nil, nil
	}

	var tokens *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("creating token service: %w", err)
		}
	}

	var keys *auth.KeyService
	if s.config.APIKeyHash != "" {
		keys = auth.NewKeyService()
	}

	verifier := auth.NewVerifier(tokens, keys, s.config.APIKeyHash)
	return auth.RequireAuth(verifier), nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database, and finally close the engines via the manager.
func (s *Server) Start() error {
	defer func() {
		if err := s.manager.Close(); err != nil {
			s.logger.Error("closing engines", slog.String("error", err.Error()))
		}
	}()
	if s.db != nil {
		defer s.db.Close()
	}

	// The write timeout must exceed the maximum execution deadline, since
	// execution requests can legitimately run for minutes. The events
	// stream lifts its own write deadline per connection.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
