package extract

import (
	"context"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// NoShowExtractor computes the fraction of scheduled appointments per
// clinic that ended as no-shows, over the lookback window.
type NoShowExtractor struct {
	lookback time.Duration
}

// NoShowOption configures a NoShowExtractor.
type NoShowOption func(*NoShowExtractor)

// WithNoShowLookback overrides the no-show lookback window.
func WithNoShowLookback(d time.Duration) NoShowOption {
	return func(e *NoShowExtractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewNoShowExtractor creates a no-show extractor with configuration options.
func NewNoShowExtractor(opts ...NoShowOption) *NoShowExtractor {
	e := &NoShowExtractor{lookback: DefaultNoShowWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the extractor.
func (e *NoShowExtractor) Name() string { return "noshow" }

// Extract aggregates no-show fractions per clinic.
func (e *NoShowExtractor) Extract(_ context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure) {
	start, end := window(snap, e.lookback)

	type agg struct {
		scheduled int
		noShows   int
	}
	aggs := make(map[string]*agg)

	for _, appt := range snap.Appointments {
		if appt.ScheduledTime.Before(start) || appt.ScheduledTime.After(end) {
			continue
		}
		a := aggs[appt.ClinicID]
		if a == nil {
			a = &agg{}
			aggs[appt.ClinicID] = a
		}
		a.scheduled++
		if appt.Status == model.StatusNoShow {
			a.noShows++
		}
	}

	var rows []model.RawMetricRow
	for clinicID, a := range aggs {
		rows = append(rows, model.RawMetricRow{
			SubjectID:   clinicID,
			SubjectType: model.SubjectClinic,
			Metric:      model.MetricNoShowRate,
			Value:       ptr(float64(a.noShows) / float64(a.scheduled)),
			SampleSize:  a.scheduled,
			WindowStart: start,
			WindowEnd:   end,
		})
	}

	return rows, nil
}
