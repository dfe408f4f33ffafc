// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/caredash/kpiengine/internal/adapters/repository"
	"github.com/caredash/kpiengine/internal/domain/model"
)

const defaultAlertLimit = 100

// AlertsDependencies defines the interface for alert operations.
type AlertsDependencies interface {
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error)
	GetAlert(ctx context.Context, id uint64) (model.Alert, error)
	AcknowledgeAlert(ctx context.Context, id uint64, by string) (model.Alert, error)
}

// AlertsHandler handles alert requests.
type AlertsHandler struct {
	deps     AlertsDependencies
	maxLimit int
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(deps AlertsDependencies, maxLimit int) *AlertsHandler {
	return &AlertsHandler{deps: deps, maxLimit: maxLimit}
}

// ackRequest mirrors the OpenAPI schema for POST /alerts/{id}/ack.
type ackRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// HandleListAlerts handles GET /alerts?open=true&limit=N requests.
// Alerts are returned newest first.
func (h *AlertsHandler) HandleListAlerts(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_alerts"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	onlyOpen := false
	if openStr := r.URL.Query().Get("open"); openStr != "" {
		v, err := strconv.ParseBool(openStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		onlyOpen = v
	}
	n := defaultAlertLimit
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
	alerts, err := h.deps.ListAlerts(r.Context(), onlyOpen, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResponseFrom(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAlertSubpath routes GET /alerts/{id} and POST /alerts/{id}/ack.
func (h *AlertsHandler) HandleAlertSubpath(w http.ResponseWriter, r *http.Request) {
	const op = "api.alert"
	path := strings.TrimPrefix(r.URL.Path, "/alerts/")
	if ack := strings.TrimSuffix(path, "/ack"); ack != path {
		h.handleAcknowledge(w, r, ack)
		return
	}
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(path, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	alert, err := h.deps.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, alertResponseFrom(alert))
}

func (h *AlertsHandler) handleAcknowledge(w http.ResponseWriter, r *http.Request, idStr string) {
	const op = "api.ack_alert"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.AcknowledgedBy) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	alert, err := h.deps.AcknowledgeAlert(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, alertResponseFrom(alert))
}
