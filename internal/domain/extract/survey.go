package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// NPS rating cutoffs on the 0-10 scale.
const (
	promoterMinRating  = 9
	detractorMaxRating = 6
)

// SurveyExtractor aggregates patient satisfaction surveys per doctor:
// response count, average rating, promoter/detractor fractions and the
// net-promoter percentage (promoters minus detractors, as a fraction of
// responses, times 100 - range [-100, 100]).
type SurveyExtractor struct {
	lookback time.Duration
}

// SurveyOption configures a SurveyExtractor.
type SurveyOption func(*SurveyExtractor)

// WithSurveyLookback overrides the survey lookback window.
func WithSurveyLookback(d time.Duration) SurveyOption {
	return func(e *SurveyExtractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewSurveyExtractor creates a survey extractor with configuration options.
func NewSurveyExtractor(opts ...SurveyOption) *SurveyExtractor {
	e := &SurveyExtractor{lookback: DefaultSurveyWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the extractor.
func (e *SurveyExtractor) Name() string { return "survey" }

type surveyAgg struct {
	responses  int
	ratingSum  float64
	promoters  int
	detractors int
}

// Extract joins surveys to appointments to doctors and aggregates
// ratings per doctor over the lookback window.
func (e *SurveyExtractor) Extract(_ context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure) {
	start, end := window(snap, e.lookback)

	apptDoctor := make(map[string]string, len(snap.Appointments))
	for _, a := range snap.Appointments {
		apptDoctor[a.AppointmentID] = a.DoctorID
	}
	known := make(map[string]bool, len(snap.Doctors))
	for _, d := range snap.Doctors {
		known[d.DoctorID] = true
	}

	aggs := make(map[string]*surveyAgg)
	var failures []SubjectFailure
	for _, s := range snap.Surveys {
		if s.CreatedAt.Before(start) || s.CreatedAt.After(end) {
			continue
		}
		doctorID, ok := apptDoctor[s.AppointmentID]
		if !ok || !known[doctorID] {
			failures = append(failures, SubjectFailure{
				Extractor:   e.Name(),
				SubjectID:   s.SurveyID,
				SubjectType: model.SubjectDoctor,
				Err:         fmt.Errorf("survey references unknown appointment %q", s.AppointmentID),
			})
			continue
		}

		agg := aggs[doctorID]
		if agg == nil {
			agg = &surveyAgg{}
			aggs[doctorID] = agg
		}
		agg.responses++
		agg.ratingSum += s.Rating
		if s.Rating >= promoterMinRating {
			agg.promoters++
		}
		if s.Rating <= detractorMaxRating {
			agg.detractors++
		}
	}

	var rows []model.RawMetricRow
	for doctorID, agg := range aggs {
		n := float64(agg.responses)
		row := func(metric string, value float64) model.RawMetricRow {
			return model.RawMetricRow{
				SubjectID:   doctorID,
				SubjectType: model.SubjectDoctor,
				Metric:      metric,
				Value:       ptr(value),
				SampleSize:  agg.responses,
				WindowStart: start,
				WindowEnd:   end,
			}
		}
		rows = append(rows,
			row(model.MetricAvgRating, agg.ratingSum/n),
			row(model.MetricNPSPct, float64(agg.promoters-agg.detractors)/n*100),
		)
	}

	return rows, failures
}
