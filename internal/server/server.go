// Package server is the composition root: it builds storage, services,
// handlers and middleware from a config.Config, mounts the routes, and runs
// the HTTP server until its context is cancelled.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB (implements the repository interfaces)
//	  → service.TaskService, service.AccountService
//	    → handler.TaskHandler, AccountHandler, AuthHandler, PageHandler
//	      → chi routes
//
// Each layer receives only what it needs. Handlers never touch the database
// and services never see HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/config"
	"github.com/sakif/todolist/internal/handler"
	"github.com/sakif/todolist/internal/metrics"
	"github.com/sakif/todolist/internal/middleware"
	sqliteRepo "github.com/sakif/todolist/internal/repository/sqlite"
	"github.com/sakif/todolist/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server owns the router and every long-lived resource behind it.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
	limiter  *middleware.RateLimiter
	tokens   *auth.TokenService
	provider auth.IdentityProvider
}

// Option customises a Server.
type Option func(*Server)

// WithIdentityProvider replaces the Google provider built from config.
// Tests use it to sign in without a network.
func WithIdentityProvider(p auth.IdentityProvider) Option {
	return func(s *Server) { s.provider = p }
}

// New opens (and migrates) the database and wires every route.
//
// Without JWT_SECRET only the public routes are mounted: home, /healthz and
// /metrics. Without a Google client the login routes are left out but
// existing session cookies still work.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(s.registry)

	db, err := sqliteRepo.New(cfg.DBPath, sqliteRepo.WithTagConflictHook(collector.TagConflict))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if cfg.AuthEnabled() {
		s.tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating token service: %w", err)
		}
		if s.provider == nil && cfg.GoogleClientID != "" {
			s.provider = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
		}
	} else {
		logger.Warn("JWT_SECRET not set, sign-in and every signed-in route are disabled")
	}

	s.limiter = middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitPerMinute), logger, collector.RateLimited)

	if err := s.setupRoutes(collector); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts middleware and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID: tags the request so log lines can be correlated
//  2. RealIP: client address from proxy headers
//  3. Logger and Instrument: see the final status, including the 500 that
//     Recoverer writes after a panic
//  4. Recoverer: turns a panic into a 500
func (s *Server) setupRoutes(collector *metrics.Collector) error {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Instrument(collector))
	r.Use(chimiddleware.Recoverer)

	resp := handler.NewResponder(s.logger, collector)

	taskService := service.NewTaskService(s.db, s.db, s.logger, service.WithRecorder(collector))

	var accountOpts []service.AccountOption
	if s.config.SampleTasks {
		accountOpts = append(accountOpts, service.WithSampleTasks(taskService))
	}
	accountService := service.NewAccountService(s.db, s.tokens, s.config.DefaultTimeZone, s.logger, accountOpts...)

	pages, err := handler.NewPageHandler(taskService, accountService, resp, s.provider != nil, s.logger)
	if err != nil {
		return err
	}
	health := handler.NewHealthHandler(s.db, resp)

	// === Public ===
	r.Get("/healthz", health.HandleHealth)
	r.Handle("/metrics", metrics.Handler(s.registry))

	if s.tokens == nil {
		r.Get("/", pages.HandleHome)
		return nil
	}
	r.With(auth.OptionalAuth(s.tokens)).Get("/", pages.HandleHome)

	// === Sign-in ===
	loginPath := "/"
	if s.provider != nil {
		authHandler := handler.NewAuthHandler(s.provider, accountService, s.config.SessionTTL, s.config.CookieSecure, s.logger)
		r.Get("/auth/google/login", authHandler.HandleLogin)
		r.Get("/auth/google/callback", authHandler.HandleCallback)
		r.Post("/auth/logout", authHandler.HandleLogout)
		loginPath = "/auth/google/login"
	} else {
		r.Post("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, auth.ClearSessionCookie(s.config.CookieSecure))
			http.Redirect(w, r, "/", http.StatusSeeOther)
		})
	}

	// === Pages ===
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePageAuth(s.tokens, loginPath))
		r.Get("/todos", pages.HandleTodos)
		r.Post("/todos", pages.HandleAddTodo)
		r.Post("/todos/{id}/delete", pages.HandleDeleteTodo)
		r.Get("/tags", pages.HandleTags)
		r.Get("/tags/{tag}", pages.HandleTagged)
		r.Post("/tags/{tag}", pages.HandleAddTodo)
		r.Get("/settings", pages.HandleSettings)
		r.Post("/settings", pages.HandleSaveSettings)
	})

	// === API ===
	tasks := handler.NewTaskHandler(taskService, accountService, resp, s.logger)
	accounts := handler.NewAccountHandler(accountService, resp)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))
		r.Use(s.limiter.Middleware)

		r.Get("/me", accounts.HandleMe)
		r.Put("/me", accounts.HandleUpdateMe)

		r.Get("/tasks", tasks.HandleList)
		r.Post("/tasks", tasks.HandleCreate)
		r.Get("/tasks/{id}", tasks.HandleGet)
		r.Put("/tasks/{id}", tasks.HandleUpdate)
		r.Delete("/tasks/{id}", tasks.HandleDelete)

		r.Get("/tags", tasks.HandleTags)
		r.Get("/tags/autocomplete", tasks.HandleAutocomplete)
	})

	return nil
}

// Run serves until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to shutdownTimeout for in-flight requests
//  3. release the rate limiter and the database
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("signInEnabled", s.provider != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close releases the rate limiter and the database. Run calls it on exit.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
