// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	service "github.com/caredash/kpiengine/internal/app"
	"github.com/caredash/kpiengine/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to implementations in other
// packages.
type Dependencies interface {
	// RunCycle executes one full refresh cycle. Returns
	// ErrCycleInProgress while another cycle is running.
	RunCycle(ctx context.Context) (model.CycleOutcome, error)

	// Read operations expose scores, alerts, and engine state.
	GetStats(ctx context.Context) (Stats, error)
	ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error)
	GetScore(ctx context.Context, subjectID string) (model.CompositeScore, error)
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error)
	GetAlert(ctx context.Context, id uint64) (model.Alert, error)
	AcknowledgeAlert(ctx context.Context, id uint64, by string) (model.Alert, error)
}

// Stats mirrors the read shape returned by the stats query.
type Stats = service.Stats

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	refreshHandler *RefreshHandler
	scoresHandler  *ScoresHandler
	alertsHandler  *AlertsHandler
	reportHandler  *ReportHandler
}

// NewServer creates a new API server with all handlers. maxLimit bounds
// the limit query parameter of list endpoints.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		refreshHandler: NewRefreshHandler(deps),
		scoresHandler:  NewScoresHandler(deps, maxLimit),
		alertsHandler:  NewAlertsHandler(deps, maxLimit),
		reportHandler:  NewReportHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	mux.HandleFunc("/scores", MetricsMiddleware(s.scoresHandler.HandleListScores, "scores"))
	mux.HandleFunc("/scores/", MetricsMiddleware(s.scoresHandler.HandleGetScore, "score"))
	mux.HandleFunc("/alerts", MetricsMiddleware(s.alertsHandler.HandleListAlerts, "alerts"))
	mux.HandleFunc("/alerts/", MetricsMiddleware(s.alertsHandler.HandleAlertSubpath, "alert"))
	mux.HandleFunc("/reports/doctors", MetricsMiddleware(s.reportHandler.HandleDoctorReport, "report"))
}

// scoreResponse mirrors the OpenAPI schema for composite score rows.
type scoreResponse struct {
	DoctorID         string   `json:"doctor_id"`
	DoctorName       string   `json:"doctor_name"`
	ResponsesCount   int      `json:"responses_count"`
	NPSPct           float64  `json:"nps_pct"`
	ReadmissionPct   float64  `json:"readmission_30d_pct"`
	AvgWaitMinutes   *float64 `json:"avg_wait_minutes"`
	FollowupPct      float64  `json:"followup_adherence_pct"`
	NPSNorm          float64  `json:"nps_norm"`
	ReadmissionNorm  float64  `json:"readmission_norm"`
	WaitNorm         float64  `json:"wait_norm"`
	FollowupNorm     float64  `json:"followup_norm"`
	VolumeAdjustment float64  `json:"volume_adjustment"`
	Composite        float64  `json:"composite"`
	ComputedAt       string   `json:"computed_at"`
}

func scoreResponseFrom(sc model.CompositeScore) scoreResponse {
	return scoreResponse{
		DoctorID:         sc.SubjectID,
		DoctorName:       sc.SubjectName,
		ResponsesCount:   sc.ResponsesCount,
		NPSPct:           sc.NPSPct,
		ReadmissionPct:   sc.ReadmissionPct,
		AvgWaitMinutes:   sc.AvgWaitMinutes,
		FollowupPct:      sc.FollowupPct,
		NPSNorm:          sc.NPSNorm,
		ReadmissionNorm:  sc.ReadmissionNorm,
		WaitNorm:         sc.WaitNorm,
		FollowupNorm:     sc.FollowupNorm,
		VolumeAdjustment: sc.VolumeAdjustment,
		Composite:        sc.Composite,
		ComputedAt:       sc.ComputedAt.UTC().Format(time.RFC3339),
	}
}

// alertResponse mirrors the OpenAPI schema for alert rows.
type alertResponse struct {
	ID             uint64  `json:"id"`
	CreatedAt      string  `json:"created_at"`
	AlertType      string  `json:"alert_type"`
	ObjectType     string  `json:"object_type"`
	ObjectID       string  `json:"object_id"`
	Metric         string  `json:"metric"`
	Value          float64 `json:"value"`
	Threshold      float64 `json:"threshold"`
	Severity       string  `json:"severity"`
	Message        string  `json:"message"`
	Acknowledged   bool    `json:"acknowledged"`
	AcknowledgedBy string  `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string `json:"acknowledged_at,omitempty"`
}

func alertResponseFrom(a model.Alert) alertResponse {
	resp := alertResponse{
		ID:             a.ID,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		AlertType:      a.Type,
		ObjectType:     string(a.ObjectType),
		ObjectID:       a.ObjectID,
		Metric:         a.Metric,
		Value:          a.Value,
		Threshold:      a.Threshold,
		Severity:       string(a.Severity),
		Message:        a.Message,
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
	}
	if a.AcknowledgedAt != nil {
		at := a.AcknowledgedAt.UTC().Format(time.RFC3339)
		resp.AcknowledgedAt = &at
	}
	return resp
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
