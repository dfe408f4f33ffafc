package extract

import (
	"context"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// FollowupExtractor computes follow-up adherence per doctor: the
// fraction of follow-up-flagged appointments in the window that were
// completed. Doctors with no flagged appointments produce no row.
type FollowupExtractor struct {
	lookback time.Duration
}

// FollowupOption configures a FollowupExtractor.
type FollowupOption func(*FollowupExtractor)

// WithFollowupLookback overrides the follow-up lookback window.
func WithFollowupLookback(d time.Duration) FollowupOption {
	return func(e *FollowupExtractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewFollowupExtractor creates a follow-up extractor with configuration options.
func NewFollowupExtractor(opts ...FollowupOption) *FollowupExtractor {
	e := &FollowupExtractor{lookback: DefaultFollowupWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the extractor.
func (e *FollowupExtractor) Name() string { return "followup" }

// Extract aggregates follow-up adherence fractions per doctor.
func (e *FollowupExtractor) Extract(_ context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure) {
	start, end := window(snap, e.lookback)

	type agg struct {
		flagged int
		done    int
	}
	aggs := make(map[string]*agg)

	for _, appt := range snap.Appointments {
		if !appt.IsFollowup {
			continue
		}
		if appt.ScheduledTime.Before(start) || appt.ScheduledTime.After(end) {
			continue
		}
		a := aggs[appt.DoctorID]
		if a == nil {
			a = &agg{}
			aggs[appt.DoctorID] = a
		}
		a.flagged++
		if appt.Status == model.StatusDone {
			a.done++
		}
	}

	var rows []model.RawMetricRow
	for doctorID, a := range aggs {
		rows = append(rows, model.RawMetricRow{
			SubjectID:   doctorID,
			SubjectType: model.SubjectDoctor,
			Metric:      model.MetricFollowup,
			Value:       ptr(float64(a.done) / float64(a.flagged)),
			SampleSize:  a.flagged,
			WindowStart: start,
			WindowEnd:   end,
		})
	}

	return rows, nil
}
