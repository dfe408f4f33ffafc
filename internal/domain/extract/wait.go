package extract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// WaitExtractor computes waiting-room time (consult start minus arrival,
// in minutes) per doctor and per clinic. Doctor rows carry average and
// median wait across all of the doctor's appointments; clinic rows carry
// the clinic average, computed as the mean of the clinic's per-doctor
// averages so a high-volume doctor does not dominate the clinic figure.
type WaitExtractor struct {
	lookback time.Duration
}

// WaitOption configures a WaitExtractor.
type WaitOption func(*WaitExtractor)

// WithWaitLookback overrides the wait-time lookback window.
func WithWaitLookback(d time.Duration) WaitOption {
	return func(e *WaitExtractor) {
		if d > 0 {
			e.lookback = d
		}
	}
}

// NewWaitExtractor creates a wait-time extractor with configuration options.
func NewWaitExtractor(opts ...WaitOption) *WaitExtractor {
	e := &WaitExtractor{lookback: DefaultWaitWindow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name identifies the extractor.
func (e *WaitExtractor) Name() string { return "wait" }

type pairKey struct {
	clinicID string
	doctorID string
}

// Extract aggregates wait minutes per doctor and per clinic.
// Appointments missing either timestamp are excluded; appointments with
// a consult start before arrival are reported as failures and skipped.
func (e *WaitExtractor) Extract(_ context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure) {
	start, end := window(snap, e.lookback)

	byDoctor := make(map[string][]float64)
	byPair := make(map[pairKey][]float64)
	var failures []SubjectFailure

	for _, a := range snap.Appointments {
		if a.ArrivalTime == nil || a.ConsultStartTime == nil {
			continue
		}
		if a.ConsultStartTime.Before(start) || a.ConsultStartTime.After(end) {
			continue
		}
		wait := a.ConsultStartTime.Sub(*a.ArrivalTime).Minutes()
		if wait < 0 {
			failures = append(failures, SubjectFailure{
				Extractor:   e.Name(),
				SubjectID:   a.DoctorID,
				SubjectType: model.SubjectDoctor,
				Err:         fmt.Errorf("appointment %q: consult starts before arrival", a.AppointmentID),
			})
			continue
		}
		byDoctor[a.DoctorID] = append(byDoctor[a.DoctorID], wait)
		byPair[pairKey{a.ClinicID, a.DoctorID}] = append(byPair[pairKey{a.ClinicID, a.DoctorID}], wait)
	}

	var rows []model.RawMetricRow
	for doctorID, waits := range byDoctor {
		rows = append(rows,
			model.RawMetricRow{
				SubjectID:   doctorID,
				SubjectType: model.SubjectDoctor,
				Metric:      model.MetricAvgWait,
				Value:       ptr(mean(waits)),
				SampleSize:  len(waits),
				WindowStart: start,
				WindowEnd:   end,
			},
			model.RawMetricRow{
				SubjectID:   doctorID,
				SubjectType: model.SubjectDoctor,
				Metric:      model.MetricMedianWait,
				Value:       ptr(median(waits)),
				SampleSize:  len(waits),
				WindowStart: start,
				WindowEnd:   end,
			},
		)
	}

	// Clinic average over per-doctor averages.
	clinicAvgs := make(map[string][]float64)
	for key, waits := range byPair {
		clinicAvgs[key.clinicID] = append(clinicAvgs[key.clinicID], mean(waits))
	}
	for clinicID, avgs := range clinicAvgs {
		rows = append(rows, model.RawMetricRow{
			SubjectID:   clinicID,
			SubjectType: model.SubjectClinic,
			Metric:      model.MetricAvgWait,
			Value:       ptr(mean(avgs)),
			SampleSize:  len(avgs),
			WindowStart: start,
			WindowEnd:   end,
		})
	}

	return rows, failures
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// median interpolates between the two middle values for even-sized
// inputs, matching continuous-percentile semantics.
func median(vs []float64) float64 {
	sorted := make([]float64, len(vs))
	copy(sorted, vs)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
