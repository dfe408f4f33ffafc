// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/caredash/kpiengine/internal/app"
	"github.com/caredash/kpiengine/internal/domain/model"
)

// RefreshDependencies defines the interface for manual refresh triggers.
type RefreshDependencies interface {
	RunCycle(ctx context.Context) (model.CycleOutcome, error)
}

// RefreshHandler handles manual refresh requests.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

// HandlePostRefresh handles POST /refresh requests. The cycle runs in
// the request; the response carries the full outcome. A second trigger
// while a cycle is running gets 409.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	outcome, err := h.deps.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrCycleInProgress) {
			writeError(w, http.StatusConflict, "cycle_in_progress", NewKind(op, service.ErrCycleInProgress))
			return
		}
		// The outcome still describes the failed cycle; return it with
		// the error status so callers can see which stage broke.
		writeJSON(w, http.StatusInternalServerError, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
