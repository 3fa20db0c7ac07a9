// Package server is the local development backend: a small HTTP server
// exposing the portal API surface the sync engine consumes, backed by
// SQLite. It exists so the chat client and the engine can be exercised
// end to end without the production portal.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hivedesk/hivedesk/internal/config"
	"github.com/hivedesk/hivedesk/internal/logging"
)

// Server bundles the router, store, and token service.
type Server struct {
	cfg    config.ServerConfig
	store  *Store
	tokens *TokenService
	log    zerolog.Logger
}

// New builds a Server over an opened store.
func New(cfg config.ServerConfig, store *Store) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("server.jwt_secret is required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Server{
		cfg:    cfg,
		store:  store,
		tokens: NewTokenService(cfg.JWTSecret, ttl),
		log:    logging.Component("server"),
	}, nil
}

// Router constructs the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.tokens, s.store))

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/users/me/", s.handleMe)
			r.Get("/users/manage/", s.handleListUsers)
			r.Get("/communication/messages/", s.handleListMessages)
			r.Post("/communication/messages/", s.handleSendMessage)
			r.Post("/communication/messages/mark_read/", s.handleMarkRead)
		})
	})

	return r
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("listen", s.cfg.Listen).Msg("development backend listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
