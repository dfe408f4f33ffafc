package extract

import (
	"context"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// ReadmissionExtractor computes the 30-day readmission rate per doctor.
// A discharge in the lookback window counts as a readmission when any
// other admission for the same patient starts in the 30 days strictly
// after the discharge; multiple such admissions still count once.
type ReadmissionExtractor struct {
	lookback time.Duration
}

// ReadmissionOption configures a ReadmissionExtractor.
type ReadmissionOption func(*ReadmissionExtractor)

// WithReadmissionLookback overrides the discharge lookback window.
func WithReadmissionLookback(d time.Duration) ReadmissionOption {
	return func(e *ReadmissionExtractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewReadmissionExtractor creates a readmission extractor with configuration options.
func NewReadmissionExtractor(opts ...ReadmissionOption) *ReadmissionExtractor {
	e := &ReadmissionExtractor{lookback: DefaultReadmissionWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the extractor.
func (e *ReadmissionExtractor) Name() string { return "readmission_30d" }

// Extract aggregates discharge and readmission counts per doctor.
func (e *ReadmissionExtractor) Extract(_ context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure) {
	start, end := window(snap, e.lookback)

	// Admission start times per patient, for the existence check.
	byPatient := make(map[string][]model.Admission)
	for _, a := range snap.Admissions {
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}

	type agg struct {
		discharges   int
		readmissions int
	}
	aggs := make(map[string]*agg)

	for _, adm := range snap.Admissions {
		if adm.DischargeDate == nil {
			continue
		}
		discharged := *adm.DischargeDate
		if discharged.Before(start) || discharged.After(end) {
			continue
		}

		a := aggs[adm.DoctorID]
		if a == nil {
			a = &agg{}
			aggs[adm.DoctorID] = a
		}
		a.discharges++

		cutoff := discharged.Add(ReadmissionSpan)
		for _, next := range byPatient[adm.PatientID] {
			if next.AdmissionID == adm.AdmissionID {
				continue
			}
			// Strictly after discharge, within 30 days inclusive.
			if next.AdmissionDate.After(discharged) && !next.AdmissionDate.After(cutoff) {
				a.readmissions++
				break
			}
		}
	}

	var rows []model.RawMetricRow
	for doctorID, a := range aggs {
		rows = append(rows, model.RawMetricRow{
			SubjectID:   doctorID,
			SubjectType: model.SubjectDoctor,
			Metric:      model.MetricReadmission,
			Value:       ptr(float64(a.readmissions) / float64(a.discharges) * 100),
			SampleSize:  a.discharges,
			WindowStart: start,
			WindowEnd:   end,
		})
	}

	return rows, nil
}
