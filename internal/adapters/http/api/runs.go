package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/nbaetl/internal/app"
)

// RunStartedStatus is the acknowledgement for an accepted run.
const RunStartedStatus = "ETL started in background"

// RunsHandler triggers pipeline runs and reports on them.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

type runAccepted struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// HandleRunETL handles POST and GET /run-etl. The response never reflects
// the outcome of the run.
func (h *RunsHandler) HandleRunETL(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Submit(r.Context(), "http")
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, runAccepted{Status: RunStartedStatus, RunID: run.ID})
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%w: %w", ErrBackpressure, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// HandleGetRun handles GET /runs/{id}.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Lookup(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run)
	case errors.Is(err, service.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
