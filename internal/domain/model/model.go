// Package model contains domain models passed between layers.
package model

import "time"

// SubjectType identifies what kind of entity a metric or alert refers to.
type SubjectType string

// Subject types recognized by the engine.
const (
	SubjectDoctor SubjectType = "doctor"
	SubjectClinic SubjectType = "clinic"
)

// Severity grades an alert.
type Severity string

// Alert severities, lowest to highest.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a recognized severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Metric names produced by the extractors.
const (
	MetricAvgRating     = "avg_rating"
	MetricNPSPct        = "nps_pct"
	MetricReadmission   = "readmission_30d_pct"
	MetricAvgWait       = "avg_wait_minutes"
	MetricMedianWait    = "median_wait_minutes"
	MetricNoShowRate    = "no_show_rate"
	MetricFollowup      = "followup_adherence_pct"
	MetricResponseCount = "responses_count"
)

// RawMetricRow is one aggregate value for one subject over one lookback
// window. Value is nil iff SampleSize is zero for rate/average metrics.
// Rows live only for the cycle that produced them.
type RawMetricRow struct {
	SubjectID   string
	SubjectType SubjectType
	Metric      string
	Value       *float64
	SampleSize  int
	WindowStart time.Time
	WindowEnd   time.Time
}

// NormalizedScore is a raw metric rescaled to [0,1] against the current
// population. Recomputed from scratch every cycle.
type NormalizedScore struct {
	SubjectID  string
	Metric     string
	RawValue   *float64
	Normalized float64
}

// CompositeScore is the weighted blend of a doctor's normalized metrics
// on a 0-100 scale. One row per subject per cycle; a new cycle's row
// supersedes the previous one.
type CompositeScore struct {
	SubjectID        string
	SubjectName      string
	ResponsesCount   int
	NPSPct           float64
	ReadmissionPct   float64
	AvgWaitMinutes   *float64
	FollowupPct      float64
	NPSNorm          float64
	ReadmissionNorm  float64
	WaitNorm         float64
	FollowupNorm     float64
	VolumeAdjustment float64
	Composite        float64
	ComputedAt       time.Time
}

// Alert types raised by the alert engine.
const (
	AlertLowNPS          = "low_nps"
	AlertHighReadmission = "high_readmission"
	AlertHighWait        = "high_wait"
	AlertHighNoShow      = "high_noshow"
)

// Alert is one threshold breach. Created only by the alert engine,
// mutated only through acknowledge, never deleted.
type Alert struct {
	ID             uint64
	CreatedAt      time.Time
	Type           string
	ObjectType     SubjectType
	ObjectID       string
	Metric         string
	Value          float64
	Threshold      float64
	Severity       Severity
	Message        string
	Acknowledged   bool
	AcknowledgedBy string
	AcknowledgedAt *time.Time
}

// Identity returns the dedup identity of an alert. Two open alerts with
// the same identity are duplicates.
func (a Alert) Identity() AlertIdentity {
	return AlertIdentity{
		Type:       a.Type,
		ObjectType: a.ObjectType,
		ObjectID:   a.ObjectID,
		Metric:     a.Metric,
	}
}

// AlertIdentity keys alert deduplication across refresh cycles.
type AlertIdentity struct {
	Type       string
	ObjectType SubjectType
	ObjectID   string
	Metric     string
}

// Comparison is a threshold comparison operator.
type Comparison string

// Supported comparison operators.
const (
	CompareGTE Comparison = "gte"
	CompareLTE Comparison = "lte"
)

// Valid reports whether c is a recognized comparison.
func (c Comparison) Valid() bool {
	return c == CompareGTE || c == CompareLTE
}

// Holds applies the comparison: value >= threshold for gte, value <=
// threshold for lte.
func (c Comparison) Holds(value, threshold float64) bool {
	if c == CompareGTE {
		return value >= threshold
	}
	return value <= threshold
}

// ThresholdRule configures one alert condition. Immutable for the
// duration of a cycle.
type ThresholdRule struct {
	AlertType  string
	ObjectType SubjectType
	Metric     string
	Comparison Comparison
	Threshold  float64
	Severity   Severity
}
