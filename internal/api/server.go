// Package api exposes the HTTP status surface for a harvesting run:
// health probes, Prometheus metrics, the latest run summaries, and
// compiled retrieval context per entity.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/aggregate"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/metrics"
	"github.com/fintelworks/prospector/internal/pipeline"
)

// Contexter compiles retrieval context for one entity. Satisfied by
// aggregate.Aggregator.
type Contexter interface {
	Context(ctx context.Context, entity string) (aggregate.CompiledContext, error)
}

// RunStatus is the latest completed run, as reported by /v1/runs.
type RunStatus struct {
	StartedAt  time.Time                             `json:"started_at"`
	FinishedAt time.Time                             `json:"finished_at"`
	Summaries  map[intel.SourceKind]pipeline.Summary `json:"summaries"`
}

// Server wires HTTP handlers to the run tracker and the aggregator.
type Server struct {
	router    chi.Router
	contexter Contexter
	logger    *zap.Logger

	mu   sync.RWMutex
	last *RunStatus
}

// Config controls the server's optional surfaces.
type Config struct {
	APIKey         string
	RequestTimeout time.Duration
}

// NewServer constructs a Server with middleware and routes. A nil
// contexter disables the context endpoint.
func NewServer(contexter Contexter, cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		contexter: contexter,
		logger:    logger,
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(timeout))
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/runs", s.getRun)
		r.Get("/context/{entity}", s.getContext)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RecordRun publishes a completed run's summaries to /v1/runs.
func (s *Server) RecordRun(started, finished time.Time, summaries map[intel.SourceKind]pipeline.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &RunStatus{StartedAt: started, FinishedAt: finished, Summaries: summaries}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		s.writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}

func (s *Server) getContext(w http.ResponseWriter, r *http.Request) {
	if s.contexter == nil {
		s.writeError(w, http.StatusNotFound, "retrieval not configured")
		return
	}
	entity := chi.URLParam(r, "entity")
	if entity == "" {
		s.writeError(w, http.StatusBadRequest, "missing entity")
		return
	}
	compiled, err := s.contexter.Context(r.Context(), entity)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, compiled)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
