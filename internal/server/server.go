package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rngallery/rngallery/internal/auth"
	"github.com/rngallery/rngallery/internal/gallery"
	"github.com/rngallery/rngallery/internal/ratelimit"
	"github.com/rngallery/rngallery/internal/upload"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Pinger  Pinger
	BaseURL string
	// Auth reads the optional viewer from the jwt cookie or bearer header.
	Auth    *auth.Authenticator
	Gallery *gallery.Handler
	Uploads *upload.Handler

	MediaHosts            []string
	AllowedFrameAncestors string
}

type Server struct {
	router   chi.Router
	pinger   Pinger
	auth     *auth.Authenticator
	gallery  *gallery.Handler
	uploads  *upload.Handler
	limiters []*ratelimit.Limiter
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:               cfg.BaseURL,
		MediaHosts:            cfg.MediaHosts,
		AllowedFrameAncestors: cfg.AllowedFrameAncestors,
		EmbedPaths:            []string{"/player"},
	}))
	if cfg.Auth != nil {
		r.Use(cfg.Auth.Middleware)
	}

	s := &Server{
		router:  r,
		pinger:  cfg.Pinger,
		auth:    cfg.Auth,
		gallery: cfg.Gallery,
		uploads: cfg.Uploads,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter sweeps.
func (s *Server) Close() {
	for _, l := range s.limiters {
		l.Stop()
	}
}

func (s *Server) limiter(requestsPerSecond float64, burst int) *ratelimit.Limiter {
	l := ratelimit.NewLimiter(requestsPerSecond, burst)
	s.limiters = append(s.limiters, l)
	return l
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	if s.uploads != nil {
		uploadLimiter := s.limiter(2, 10)
		s.router.Get("/upload", s.uploads.Page)
		s.router.Get("/api/limits", s.uploads.Limits)
		s.router.Route("/api/uploads", func(r chi.Router) {
			r.Use(uploadLimiter.Middleware)
			r.Use(auth.Require)
			r.Post("/", s.uploads.Create)
			r.Get("/", s.uploads.List)
			r.Get("/{id}", s.uploads.Status)
			r.Delete("/{id}", s.uploads.Cancel)
		})
	}

	if s.gallery != nil {
		likeLimiter := s.limiter(1, 5)
		s.router.Get("/player", s.gallery.PlayerPage)
		s.router.With(likeLimiter.Middleware, auth.Require).Post("/api/gifs/{id}/like", s.gallery.ToggleLike)
		s.router.Get("/{username}/{slug}", s.gallery.DetailPage)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
