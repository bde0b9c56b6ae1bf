// Package server provides the HTTP API for the dashboard.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/apppulse/apppulse/internal/model"
	"github.com/apppulse/apppulse/pkg/apperrors"
)

// Provider is the query surface the server needs. It must tolerate
// repeated, concurrent calls with different filter values.
type Provider interface {
	Dashboard(ctx context.Context, category string) (*model.DashboardData, error)
	Categories(ctx context.Context) ([]string, error)
}

// HealthCheck reports one dependency's reachability.
type HealthCheck func(ctx context.Context) error

// Server handles dashboard HTTP requests.
type Server struct {
	provider Provider
	checks   map[string]HealthCheck
	mux      *http.ServeMux
	logger   *slog.Logger
}

// NewServer creates the API server. checks maps dependency names to
// reachability probes for the health endpoint; nil is fine.
func NewServer(provider Provider, checks map[string]HealthCheck) *Server {
	s := &Server{
		provider: provider,
		checks:   checks,
		mux:      http.NewServeMux(),
		logger:   slog.Default().With("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/dashboard", s.handleDashboard)
	s.mux.HandleFunc("/api/categories", s.handleCategories)
	s.mux.HandleFunc("/api/health", s.handleHealth)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS headers for the dashboard frontend
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mux.ServeHTTP(w, r)
}

// errorState is the envelope the presentation layer receives on any core
// failure: a well-formed shape, never a bare 500 it has to interpret.
type errorState struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorState{Status: "error", Message: "method not allowed"})
		return
	}

	category := r.URL.Query().Get("category")

	data, err := s.provider.Dashboard(r.Context(), category)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorState{Status: "error", Message: "method not allowed"})
		return
	}

	cats, err := s.provider.Categories(r.Context())
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}

	body := map[string]any{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	s.writeJSON(w, status, body)
}

// writeQueryError maps core failures to the user-visible states: an
// incomplete pipeline and an unreachable warehouse are both 503 with a
// typed status, not partial output.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case apperrors.IsSchemaMismatch(err):
		s.logger.Warn("dashboard request before pipeline completion", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorState{
			Status:  "pipeline_incomplete",
			Message: "the pipeline has not completed; run it and retry",
		})
	case apperrors.IsConnection(err):
		s.logger.Error("warehouse unavailable", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, errorState{
			Status:  "store_unavailable",
			Message: "warehouse is unavailable",
		})
	default:
		s.logger.Error("dashboard query failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorState{
			Status:  "error",
			Message: "query failed",
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed encoding response", "error", err)
	}
}
