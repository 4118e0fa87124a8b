package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/signalfold/signalfold/internal/aggregate"
	"github.com/signalfold/signalfold/internal/intel"
	"github.com/signalfold/signalfold/internal/metrics"
)

// Config holds the HTTP surface settings.
type Config struct {
	APIKey string
}

// Server wires HTTP handlers to the latest scan result. Results are
// swapped in whole after each run, so reads never see a half-updated
// inventory.
type Server struct {
	router chi.Router
	logger *zap.Logger

	mu        sync.RWMutex
	summary   intel.RunSummary
	inventory *aggregate.Inventory
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/entities", s.listEntities)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetResult publishes a completed run to readers.
func (s *Server) SetResult(summary intel.RunSummary, inventory *aggregate.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	s.inventory = inventory
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.inventory != nil
	s.mu.RUnlock()
	if !ready {
		writeJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first scan"})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	summary, inventory := s.summary, s.inventory
	s.mu.RUnlock()
	if inventory == nil {
		writeError(s.logger, w, http.StatusNotFound, "no completed scan")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"run": summary})
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	summary, inventory := s.summary, s.inventory
	s.mu.RUnlock()
	if inventory == nil {
		writeError(s.logger, w, http.StatusNotFound, "no completed scan")
		return
	}

	filter := aggregate.Filter{
		Region:   r.URL.Query().Get("region"),
		Category: r.URL.Query().Get("category"),
	}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil || minScore < 0 {
			writeError(s.logger, w, http.StatusBadRequest, "min_score must be a non-negative integer")
			return
		}
		filter.MinScore = minScore
	}

	entities := inventory.Entities(filter)
	writeJSON(s.logger, w, http.StatusOK, entityListResponse{
		RunID:    summary.RunID,
		RawCount: inventory.RawCount(),
		Count:    len(entities),
		Entities: entities,
	})
}

type entityListResponse struct {
	RunID    string               `json:"run_id"`
	RawCount int                  `json:"raw_observation_count"`
	Count    int                  `json:"count"`
	Entities []intel.EntityRecord `json:"entities"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
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
				writeError(nil, w, http.StatusForbidden, "unauthorized")
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

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
