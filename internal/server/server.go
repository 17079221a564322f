// Package server exposes a read-only HTTP view of the local job registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/hy3d/internal/errors"
	"github.com/3leaps/hy3d/internal/server/handlers"
	"github.com/3leaps/hy3d/internal/server/middleware"
)

// Options configures optional server behaviour.
type Options struct {
	Jobs    handlers.JobReader
	Version handlers.VersionInfo
	Logger  *zap.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps an http.Server with the hy3d routes.
type Server struct {
	host   string
	port   int
	router chi.Router
	http   *http.Server
}

// New builds a server with default options.
func New(host string, port int) *Server {
	return NewWithOptions(host, port, Options{})
}

// NewWithOptions builds a server. /jobs routes are registered only when
// opts.Jobs is set.
func NewWithOptions(host string, port int, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger(opts.Logger))
	r.NotFound(apperrors.NotFoundHandler)
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler)

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", handlers.VersionHandler(opts.Version))

	if opts.Jobs != nil {
		jobs := &handlers.Jobs{Store: opts.Jobs}
		r.Get("/jobs", jobs.List)
		r.Get("/jobs/{id}", jobs.Get)
	}

	s := &Server{host: host, port: port, router: r}
	s.http = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Port() int { return s.port }

func (s *Server) Addr() string { return s.http.Addr }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.http.Addr, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
