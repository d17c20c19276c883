// Package api declares the HTTP contracts of the matching service and its
// route registration.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/bookmatch/internal/app"
	"github.com/okian/bookmatch/internal/domain/matching"
	"github.com/okian/bookmatch/internal/domain/model"
)

// maxBodyBytes bounds request bodies; a pass of a few thousand books fits.
const maxBodyBytes = 16 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Match(ctx context.Context, userID string, book *model.SourceBook) (matching.Outcome, error)
	SyncPass(ctx context.Context, userID string, books []*model.SourceBook) (*service.PassReport, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	matchHandler  *MatchHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		matchHandler:  NewMatchHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/match", MetricsMiddleware(s.matchHandler.HandleMatch, "match"))
	mux.HandleFunc("/passes", MetricsMiddleware(s.matchHandler.HandlePass, "passes"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
