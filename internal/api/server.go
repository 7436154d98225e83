// Package api provides the HTTP control API for the traffic generator.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/narvanalabs/mocktraffic/internal/api/handlers"
	"github.com/narvanalabs/mocktraffic/internal/api/health"
	"github.com/narvanalabs/mocktraffic/internal/api/middleware"
	"github.com/narvanalabs/mocktraffic/internal/auth"
	"github.com/narvanalabs/mocktraffic/internal/preferences"
	"github.com/narvanalabs/mocktraffic/internal/store"
	"github.com/narvanalabs/mocktraffic/internal/traffic"
	"github.com/narvanalabs/mocktraffic/pkg/config"
	"github.com/narvanalabs/mocktraffic/pkg/version"
)

// Server represents the HTTP API server.
type Server struct {
	router        chi.Router
	mu            sync.Mutex
	httpServer    *http.Server
	store         store.Store
	prefs         *preferences.Service
	generator     *traffic.Generator
	auth          *auth.Service
	config        *config.Config
	logger        *slog.Logger
	healthChecker *health.Checker

	// closing is closed when shutdown starts so long-lived streams end.
	closing     chan struct{}
	closingOnce sync.Once
}

// NewServer creates a new API server with the given dependencies.
func NewServer(cfg *config.Config, st store.Store, prefs *preferences.Service, generator *traffic.Generator, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     st,
		prefs:     prefs,
		generator: generator,
		auth:      authSvc,
		config:    cfg,
		logger:    logger,
		closing:   make(chan struct{}),
	}

	s.healthChecker = health.NewChecker(st, generator, version.Version)
	s.setupRouter()
	return s
}

// setupRouter configures the router with middleware and routes.
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery(s.logger))

	docsHandler := handlers.NewDocsHandler(s.logger)
	authHandler := handlers.NewAuthHandler(s.auth, s.logger)
	urlHandler := handlers.NewURLHandler(s.prefs, s.logger)
	prefsHandler := handlers.NewPreferencesHandler(s.prefs, s.logger)
	trafficHandler := handlers.NewTrafficHandler(s.generator, s.logger)
	statsHandler := handlers.NewStatsHandler(s.generator, s.logger)
	statsHandler.CloseOn(s.closing)
	visitHandler := handlers.NewVisitHandler(s.store.Visits(), s.logger)

	// Streaming endpoints hold the connection open, so the timeout
	// middleware only wraps the request/response routes.
	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Get("/health", s.healthChecker.Handler())
		r.Get("/version", docsHandler.Version)
		r.Get("/api/docs", docsHandler.ServeSwaggerUI)
		r.Get("/api/docs/openapi.yaml", docsHandler.ServeOpenAPISpec)
		r.Post("/auth/login", authHandler.Login)
	})

	r.Route("/v1", func(r chi.Router) {
		authMiddleware := middleware.NewAuthMiddleware(s.auth, s.config.AuthDisabled, s.logger)
		r.Use(authMiddleware.Authenticate)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(60 * time.Second))

			r.Route("/urls", func(r chi.Router) {
				r.Get("/", urlHandler.List)
				r.Post("/", urlHandler.Add)
				r.Delete("/", urlHandler.Clear)
			})

			r.Get("/preferences", prefsHandler.Get)
			r.Put("/preferences/doh", prefsHandler.UpdateDoH)
			r.Get("/providers", prefsHandler.Providers)

			r.Post("/traffic/start", trafficHandler.Start)
			r.Post("/traffic/stop", trafficHandler.Stop)

			r.Get("/stats", statsHandler.Get)
			r.Get("/visits", visitHandler.List)
		})

		r.Get("/stats/stream", statsHandler.Stream)
		r.Get("/stats/ws", statsHandler.WebSocket)
	})

	s.router = r
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.APIAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	srv.RegisterOnShutdown(s.closeStreams)
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("starting API server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) closeStreams() {
	s.closingOnce.Do(func() { close(s.closing) })
}

// Router returns the chi router for testing purposes.
func (s *Server) Router() chi.Router {
	return s.router
}
