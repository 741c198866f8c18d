// Package server is the composition root: it picks the backend, wires the
// sync engine, the workflow controller and the HTTP handlers, and runs
// the HTTP server until SIGINT/SIGTERM.
//
// ROUTES:
//
//	GET    /api/status                  mode + loading flag
//	POST   /api/auth/login              student or builder sign-in
//	POST   /api/auth/register           student sign-up (signs in)
//	POST   /api/auth/logout             [auth]
//	GET    /api/me                      [auth]
//	GET    /api/requests                [auth] builder feed / student history
//	POST   /api/requests                [auth] student submission
//	POST   /api/requests/{id}/process   [auth] builder, async (202)
//	GET    /api/users                   [auth] builder, with request counts
//	GET    /api/users/{id}/requests     [auth] builder, newest first
//	PATCH  /api/users/{id}              [auth] builder
//	DELETE /api/users/{id}              [auth] builder
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/apfiles/internal/auth"
	"github.com/sakif/apfiles/internal/config"
	"github.com/sakif/apfiles/internal/generator"
	"github.com/sakif/apfiles/internal/handler"
	"github.com/sakif/apfiles/internal/middleware"
	"github.com/sakif/apfiles/internal/repository"
	"github.com/sakif/apfiles/internal/repository/local"
	"github.com/sakif/apfiles/internal/repository/redisstore"
	"github.com/sakif/apfiles/internal/service"
	"github.com/sakif/apfiles/internal/workflow"
)

// pingTimeout bounds the startup reachability check of Redis.
const pingTimeout = 3 * time.Second

// Server represents the HTTP server and all its dependencies. It owns the
// backend connection and the controller and closes both on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	ctrl         workflow.Controller
	closeBackend func() error
}

// New builds the full dependency graph and starts the controller.
//
//	backend (redis | sqlite) → SyncService → RequestProcessor
//	                                       ↘ workflow.Controller → handlers
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	passwords := auth.NewPasswordService()
	creds, err := auth.NewAdminCredentials(cfg.BuilderEmail, cfg.BuilderPassword, passwords)
	if err != nil {
		closeBackend()
		return nil, err
	}
	if cfg.BuilderEmail == "" || cfg.BuilderPassword == "" {
		logger.Warn("builder credentials not set; admin login disabled")
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		closeBackend()
		return nil, err
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		closeBackend()
		return nil, err
	}

	svc := service.NewSyncService(backend, logger)
	ctrl := workflow.New(workflow.Config{
		Sync:        svc,
		Processor:   service.NewRequestProcessor(svc, gen, cfg.DeliveryDelay, logger),
		Credentials: creds,
		Logger:      logger,
	})
	if err := ctrl.Start(ctx); err != nil {
		ctrl.Close()
		closeBackend()
		return nil, fmt.Errorf("starting controller: %w", err)
	}

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		logger:       logger,
		ctrl:         ctrl,
		closeBackend: closeBackend,
	}
	s.setupRoutes(tokens)

	logger.Info("server configured", slog.String("mode", string(ctrl.Mode())))
	return s, nil
}

// openBackend returns the Redis store when redisAddr is set and answers
// PING, and the local SQLite store otherwise.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Backend, func() error, error) {
	if cfg.RemoteEnabled() {
		store, err := redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err = store.Ping(pingCtx)
			cancel()
			if err == nil {
				return store, store.Close, nil
			}
			store.Close()
		}
		logger.Warn("remote store unavailable, falling back to local",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	}

	if cfg.DataPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	store, err := local.New(cfg.DataPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening local store: %w", err)
	}
	return store, store.Close, nil
}

func newGenerator(cfg config.Config, logger *slog.Logger) (generator.Generator, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; using static study material")
		return generator.Static{}, nil
	}
	client, err := generator.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return generator.NewFallback(client, logger), nil
}

func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	authHandler := handler.NewAuthHandler(s.ctrl, tokens, s.logger)
	requestHandler := handler.NewRequestHandler(s.ctrl, s.logger)
	userHandler := handler.NewUserHandler(s.ctrl, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", handler.HandleStatus(s.ctrl))
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/register", authHandler.HandleRegister)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Post("/auth/logout", authHandler.HandleLogout)
			r.Get("/me", authHandler.HandleMe)

			r.Get("/requests", requestHandler.HandleList)
			r.Post("/requests", requestHandler.HandleCreate)
			r.Post("/requests/{id}/process", requestHandler.HandleProcess)

			r.Get("/users", userHandler.HandleList)
			r.Get("/users/{id}/requests", userHandler.HandleHistory)
			r.Patch("/users/{id}", userHandler.HandleUpdate)
			r.Delete("/users/{id}", userHandler.HandleDelete)
		})
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Mode reports the active backend mode.
func (s *Server) Mode() workflow.Mode {
	return s.ctrl.Mode()
}

// Close stops the controller, waiting for in-flight processing, then
// closes the backend.
func (s *Server) Close() error {
	ctrlErr := s.ctrl.Close()
	backendErr := s.closeBackend()
	return errors.Join(ctrlErr, backendErr)
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully:
// in-flight requests get 30 seconds, then the controller and backend are
// closed.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("mode", string(s.ctrl.Mode())),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
