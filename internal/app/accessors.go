package service

import (
	"context"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
	"github.com/caredash/kpiengine/pkg/metrics"
)

// Stats is a point-in-time view of the engine for operators.
type Stats struct {
	Stage       model.Stage         `json:"stage"`
	OpenAlerts  int                 `json:"open_alerts"`
	LastOutcome *model.CycleOutcome `json:"last_cycle,omitempty"`
}

// GetStats returns the current stage, open alert count, and the most
// recent cycle outcome.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	open, err := s.store.CountOpenAlerts(ctx)
	if err != nil {
		return Stats{}, err
	}
	metrics.UpdateOpenAlerts(open)
	return Stats{
		Stage:       s.Stage(),
		OpenAlerts:  open,
		LastOutcome: s.LastOutcome(),
	}, nil
}

// ListScores returns the latest cycle's composite scores, best first.
func (s *Service) ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error) {
	return s.store.ListScores(ctx, limit)
}

// GetScore returns the latest composite score for one doctor.
func (s *Service) GetScore(ctx context.Context, subjectID string) (model.CompositeScore, error) {
	return s.store.GetScore(ctx, subjectID)
}

// ListAlerts returns alerts newest first, optionally only open ones.
func (s *Service) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error) {
	return s.store.ListAlerts(ctx, onlyOpen, limit)
}

// GetAlert returns one alert by id.
func (s *Service) GetAlert(ctx context.Context, id uint64) (model.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// AcknowledgeAlert marks an alert acknowledged. Acknowledging twice is
// a no-op that returns the stored record.
func (s *Service) AcknowledgeAlert(ctx context.Context, id uint64, by string) (model.Alert, error) {
	alert, err := s.store.Acknowledge(ctx, id, by, time.Now().UTC())
	if err != nil {
		return model.Alert{}, err
	}
	metrics.RecordAlertAcknowledged()
	if open, cerr := s.store.CountOpenAlerts(ctx); cerr == nil {
		metrics.UpdateOpenAlerts(open)
	}
	return alert, nil
}
