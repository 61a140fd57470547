// Package opsserver serves the operational HTTP surface: liveness, readiness,
// prometheus metrics and read-only bracket views.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports whether a dependency is ready.
type Check func(ctx context.Context) error

// BracketReader is the slice of the waifu war service the bracket views read.
type BracketReader interface {
	ListRoster(ctx context.Context, bracketID int64) (*waifuwartypes.BracketRoster, error)
	ListDivisions(ctx context.Context, bracketID int64) ([]waifuwartypes.Division, error)
}

// Option configures the routes a Server mounts.
type Option func(*Server)

// WithReadiness registers named checks run by /readyz.
func WithReadiness(checks map[string]Check) Option {
	return func(s *Server) { s.checks = checks }
}

// WithMetrics mounts /metrics for registry.
func WithMetrics(registry *prometheus.Registry) Option {
	return func(s *Server) { s.registry = registry }
}

// WithBrackets mounts /api/brackets.
func WithBrackets(reader BracketReader) Option {
	return func(s *Server) { s.brackets = reader }
}

// Server is the ops http server.
type Server struct {
	logger   *slog.Logger
	checks   map[string]Check
	registry *prometheus.Registry
	brackets BracketReader
	srv      *http.Server
}

// New builds a server listening on addr. /healthz is always mounted.
func New(addr string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the configured chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.checks != nil {
		r.Get("/readyz", s.ready)
	}
	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	if s.brackets != nil {
		r.Route("/api/brackets/{bracketID}", func(r chi.Router) {
			r.Get("/", s.getBracket)
			r.Get("/divisions", s.getDivisions)
		})
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Ops server listening", attr.String("address", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return nil
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	report := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", attr.String("check", name), attr.Error(err))
			report[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		report[name] = "ok"
	}
	writeJSON(w, status, report)
}

func (s *Server) getBracket(w http.ResponseWriter, r *http.Request) {
	bracketID, ok := bracketParam(w, r)
	if !ok {
		return
	}
	roster, err := s.brackets.ListRoster(r.Context(), bracketID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

func (s *Server) getDivisions(w http.ResponseWriter, r *http.Request) {
	bracketID, ok := bracketParam(w, r)
	if !ok {
		return
	}
	divisions, err := s.brackets.ListDivisions(r.Context(), bracketID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, divisions)
}

func bracketParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	bracketID, err := strconv.ParseInt(chi.URLParam(r, "bracketID"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid bracket ID", http.StatusBadRequest)
		return 0, false
	}
	return bracketID, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var notFound *waifuwarservice.NotFoundError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case waifuwarservice.IsDomainError(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.ErrorContext(r.Context(), "Bracket view failed", attr.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
