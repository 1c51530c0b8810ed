// Package api is the REST backend consumed by the classbook client.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"classbook/internal/auth"
	"classbook/internal/database"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options tunes the optional parts of the server.
type Options struct {
	RateLimit         rate.Limit
	RateBurst         int
	ClassroomCacheTTL time.Duration
	Metrics           bool
	// Checks are pinged by /readyz in addition to the database.
	Checks map[string]Pinger
}

type Server struct {
	db        *database.DB
	tokens    *auth.Issuer
	logger    zerolog.Logger
	opts      Options
	responses *cache.Cache
	limiter   *IPRateLimiter
}

func NewServer(db *database.DB, tokens *auth.Issuer, logger *zerolog.Logger, opts Options) *Server {
	s := &Server{
		db:     db,
		tokens: tokens,
		logger: logger.With().Str("component", "api").Logger(),
		opts:   opts,
	}
	if opts.ClassroomCacheTTL > 0 {
		s.responses = cache.New(opts.ClassroomCacheTTL, 2*opts.ClassroomCacheTTL)
	}
	if opts.RateLimit > 0 {
		s.limiter = NewIPRateLimiter(opts.RateLimit, opts.RateBurst)
	}
	return s
}

// InvalidateClassrooms drops cached classroom responses.
func (s *Server) InvalidateClassrooms() {
	if s.responses != nil {
		s.responses.Flush()
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReady)
	if s.opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/signup", s.handleSignUp)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/users/me", s.handleGetMe)
			r.Get("/users/{userID}", s.handleGetUser)
			r.Put("/users/{userID}", s.handleUpdateUser)

			r.With(s.cacheResponses).Get("/classrooms", s.handleListClassrooms)
			r.With(s.cacheResponses).Get("/classrooms/{classroomID}", s.handleGetClassroom)
			r.Post("/classrooms", s.handleCreateClassroom)

			r.Get("/reservations/me", s.handleMyReservations)
			r.Get("/reservations/classroom/{classroomID}", s.handleClassroomReservations)
			r.Post("/reservations", s.handleCreateReservation)
			r.Delete("/reservations/{reservationID}", s.handleDeleteReservation)
		})
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok"}
	ready := true
	if err := s.db.Ping(ctx); err != nil {
		status["database"] = err.Error()
		ready = false
	}
	for name, check := range s.opts.Checks {
		status[name] = "ok"
		if err := check.Ping(ctx); err != nil {
			status[name] = err.Error()
			ready = false
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
