// Package extract computes per-subject KPI aggregates from a consistent
// snapshot of raw source records.
package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Default lookback windows.
const (
	DefaultSurveyWindow      = 90 * 24 * time.Hour
	DefaultWaitWindow        = 90 * 24 * time.Hour
	DefaultNoShowWindow      = 90 * 24 * time.Hour
	DefaultFollowupWindow    = 90 * 24 * time.Hour
	DefaultReadmissionWindow = 180 * 24 * time.Hour

	// ReadmissionSpan is the post-discharge interval that qualifies a
	// subsequent admission as a readmission.
	ReadmissionSpan = 30 * 24 * time.Hour
)

// Snapshot is an immutable in-memory view of the source tables, taken
// once at cycle start. All extractors compute against the same snapshot
// so no extractor observes a partially-updated source.
type Snapshot struct {
	TakenAt      time.Time
	Doctors      []model.Doctor
	Appointments []model.Appointment
	Admissions   []model.Admission
	Surveys      []model.PatientSurvey
}

// SubjectFailure records an extraction problem isolated to one subject
// or record. It degrades the cycle summary without aborting the cycle.
type SubjectFailure struct {
	Extractor   string
	SubjectID   string
	SubjectType model.SubjectType
	Err         error
}

func (f SubjectFailure) String() string {
	return fmt.Sprintf("%s: %s %s: %v", f.Extractor, f.SubjectType, f.SubjectID, f.Err)
}

// Extractor produces RawMetricRows for every subject with at least one
// qualifying record in its lookback window.
type Extractor interface {
	// Name identifies the extractor in failure reports and logs.
	Name() string

	// Extract computes aggregate rows from snap. Per-subject problems
	// are returned as failures, never as an error for the whole run.
	Extract(ctx context.Context, snap *Snapshot) ([]model.RawMetricRow, []SubjectFailure)
}

// RunAll executes the extractors concurrently against one snapshot.
// Extractors have no cross-metric dependencies, so they are safe to run
// in parallel; a panicking extractor is converted into a failure entry
// instead of taking the cycle down.
func RunAll(ctx context.Context, snap *Snapshot, extractors []Extractor) ([]model.RawMetricRow, []SubjectFailure) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		rows     []model.RawMetricRow
		failures []SubjectFailure
	)

	for _, ex := range extractors {
		wg.Add(1)
		go func(ex Extractor) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					failures = append(failures, SubjectFailure{
						Extractor: ex.Name(),
						Err:       fmt.Errorf("extractor panicked: %v", r),
					})
					mu.Unlock()
				}
			}()

			got, fails := ex.Extract(ctx, snap)
			mu.Lock()
			rows = append(rows, got...)
			failures = append(failures, fails...)
			mu.Unlock()
		}(ex)
	}
	wg.Wait()

	return rows, failures
}

// window returns the [start, end] lookback range ending at the snapshot
// instant.
func window(snap *Snapshot, lookback time.Duration) (time.Time, time.Time) {
	return snap.TakenAt.Add(-lookback), snap.TakenAt
}

func ptr(v float64) *float64 { return &v }
