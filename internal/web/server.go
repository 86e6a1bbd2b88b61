// Package web provides the HTTP server in front of the validation handler.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheethealth/internal/config"
	"github.com/JonMunkholm/sheethealth/internal/core"
	"github.com/JonMunkholm/sheethealth/internal/handler"
	"github.com/JonMunkholm/sheethealth/internal/web/middleware"
)

// Server is the HTTP server for spreadsheet validation.
type Server struct {
	cfg         *config.Config
	handler     *handler.Handler
	limiter     *core.Limiter
	rateLimiter *rateLimiter
	router      *chi.Mux
	server      *http.Server
}

// NewServer creates a Server. The limiter bounds concurrent validations
// across all routes.
func NewServer(cfg *config.Config, h *handler.Handler, limiter *core.Limiter) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		limiter: limiter,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.rateLimiter = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rateLimiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))

		// Function-style invocation: event in, envelope out
		r.Post("/invoke", s.handleInvoke)

		// Same event, envelope unwrapped onto the HTTP response
		r.Post("/validate", s.handleValidate)

		// Multipart upload of the spreadsheet itself
		r.Post("/validate/upload", s.handleUpload)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "not found",
			Message: "Unknown endpoint",
			Action:  "Use POST /api/validate",
			Code:    "REQ404",
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for in-flight validations.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.stop()
	}
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses. The server only
// returns JSON, so nothing may be framed or loaded.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
