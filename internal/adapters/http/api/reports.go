// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/caredash/kpiengine/internal/adapters/report"
	"github.com/caredash/kpiengine/internal/domain/model"
)

// ReportDependencies defines the interface for report rendering.
type ReportDependencies interface {
	ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error)
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error)
}

// ReportHandler serves the Markdown doctor performance report.
type ReportHandler struct {
	deps     ReportDependencies
	maxLimit int
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies, maxLimit int) *ReportHandler {
	return &ReportHandler{deps: deps, maxLimit: maxLimit}
}

// HandleDoctorReport handles GET /reports/doctors requests.
func (h *ReportHandler) HandleDoctorReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.doctor_report"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	scores, err := h.deps.ListScores(r.Context(), h.maxLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	alerts, err := h.deps.ListAlerts(r.Context(), true, h.maxLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	var buf bytes.Buffer
	data := report.Data{GeneratedAt: time.Now().UTC(), Scores: scores, OpenAlerts: alerts}
	if err := report.RenderDoctorReport(&buf, data); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
