// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/caredash/kpiengine/internal/adapters/repository"
	"github.com/caredash/kpiengine/internal/domain/model"
)

const defaultScoreLimit = 50

// ScoresDependencies defines the interface for score queries.
type ScoresDependencies interface {
	ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error)
	GetScore(ctx context.Context, subjectID string) (model.CompositeScore, error)
}

// ScoresHandler handles composite score requests.
type ScoresHandler struct {
	deps     ScoresDependencies
	maxLimit int
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps ScoresDependencies, maxLimit int) *ScoresHandler {
	return &ScoresHandler{deps: deps, maxLimit: maxLimit}
}

// HandleListScores handles GET /scores?limit=N requests. Scores come
// from the latest committed cycle, best composite first.
func (h *ScoresHandler) HandleListScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_scores"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n := defaultScoreLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}
	scores, err := h.deps.ListScores(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	out := make([]scoreResponse, 0, len(scores))
	for _, sc := range scores {
		out = append(out, scoreResponseFrom(sc))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetScore handles GET /scores/{doctor_id} requests.
func (h *ScoresHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_score"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/scores/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	score, err := h.deps.GetScore(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponseFrom(score))
}
