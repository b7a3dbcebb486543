// Package http exposes the engine over a small JSON API: submit a run,
// health, and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeroforge/aeroforge/internal/logging"
	"github.com/aeroforge/aeroforge/pkg/domain"
)

// Engine is the pipeline entry point the API fronts.
type Engine interface {
	Run(ctx context.Context, request string) (*domain.SessionState, error)
}

// Server handles the run API.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler builds the API router.
func NewHandler(engine Engine, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/runs", s.createRun)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type runRequest struct {
	Request string `json:"request"`
}

type runResponse struct {
	State *domain.SessionState `json:"state"`
	Error string               `json:"error,omitempty"`
}

// createRun handles POST /v1/runs. The response always carries the final
// state snapshot when one exists: a failed run is a 200 with the failed
// stage recorded in the state, not a bare 500.
func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	final, err := s.engine.Run(r.Context(), body.Request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, runResponse{Error: err.Error()})
			return
		}
		s.logger.ErrorContext(r.Context(), "run ended in failure", "error", err)
		writeJSON(w, http.StatusOK, runResponse{State: final, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{State: final})
}

func writeJSON(w http.ResponseWriter, status int, body runResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("encode response failed", "err", err)
	}
}
