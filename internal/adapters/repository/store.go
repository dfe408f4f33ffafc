// Package repository persists cycle output: composite scores and alerts.
package repository

import (
	"context"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Store provides durable access to cycle output. The alert table is the
// only cross-cycle shared mutable state; everything else is written
// once per cycle.
type Store interface {
	// CommitCycle durably writes one cycle's full output set in a
	// single transaction. A failed commit leaves no partial writes.
	CommitCycle(ctx context.Context, cycleID string, scores []model.CompositeScore, alerts []model.Alert) error

	// OpenAlertExists reports whether an unacknowledged alert with the
	// given identity exists, from any prior cycle.
	OpenAlertExists(ctx context.Context, id model.AlertIdentity) (bool, error)

	// GetAlert returns one alert by id. Returns ErrNotFound for
	// unknown ids.
	GetAlert(ctx context.Context, id uint64) (model.Alert, error)

	// Acknowledge marks an alert acknowledged, recording who and when.
	// Idempotent: an already-acknowledged alert is returned unchanged.
	// Returns ErrNotFound for unknown ids.
	Acknowledge(ctx context.Context, id uint64, by string, at time.Time) (model.Alert, error)

	// ListAlerts returns alerts ordered newest first, optionally only
	// the open ones.
	ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error)

	// CountOpenAlerts returns the number of unacknowledged alerts.
	CountOpenAlerts(ctx context.Context) (int, error)

	// ListScores returns the latest committed cycle's composite
	// scores, highest composite first.
	ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error)

	// GetScore returns the latest committed composite score for one
	// subject. Returns ErrNotFound if the subject was never scored.
	GetScore(ctx context.Context, subjectID string) (model.CompositeScore, error)

	// Close releases the underlying storage handle.
	Close() error
}
