// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/nbaetl/internal/app"
	"github.com/okian/nbaetl/internal/domain/catalog"
	"github.com/okian/nbaetl/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	catalog.Reader

	// Submit queues a pipeline run without waiting for it.
	Submit(ctx context.Context, origin string) (service.Run, error)
	// Lookup returns the state of a run.
	Lookup(ctx context.Context, id string) (service.Run, error)
}

// Server wires HTTP routes for the trigger and read API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	runsHandler    *RunsHandler
	catalogHandler *CatalogHandler

	apiKey string
	logger logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		runsHandler:    NewRunsHandler(deps),
		catalogHandler: NewCatalogHandler(deps),
		logger:         logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	guard := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return MetricsMiddleware(APIKeyMiddleware(h, s.apiKey), endpoint)
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /run-etl", guard(s.runsHandler.HandleRunETL, "run-etl"))
	mux.HandleFunc("GET /run-etl", guard(s.runsHandler.HandleRunETL, "run-etl"))
	mux.HandleFunc("GET /runs/{id}", guard(s.runsHandler.HandleGetRun, "runs"))

	mux.HandleFunc("GET /players", guard(s.catalogHandler.HandlePlayers, "players"))
	mux.HandleFunc("GET /teams", guard(s.catalogHandler.HandleTeams, "teams"))
	mux.HandleFunc("GET /games", guard(s.catalogHandler.HandleGames, "games"))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/openapi.yaml", http.StatusFound)
	})

	s.logger.Info(ctx, "api routes registered", logger.Bool("auth", s.apiKey != ""))
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
