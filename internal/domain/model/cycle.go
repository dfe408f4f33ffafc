package model

import "time"

// Stage is a refresh-cycle state.
type Stage string

// Cycle stages. A cycle moves Idle -> Extracting -> Scoring ->
// Alerting -> Committed; any stage failure moves it to Failed.
const (
	StageIdle       Stage = "idle"
	StageExtracting Stage = "extracting"
	StageScoring    Stage = "scoring"
	StageAlerting   Stage = "alerting"
	StageCommitted  Stage = "committed"
	StageFailed     Stage = "failed"
)

// CycleOutcome summarizes one refresh cycle for the scheduler and the
// stats endpoint. A failed cycle names the stage it died in; a
// committed cycle enumerates any per-subject extraction failures that
// degraded it.
type CycleOutcome struct {
	CycleID          string    `json:"cycle_id"`
	State            Stage     `json:"state"`
	FailedStage      Stage     `json:"failed_stage,omitempty"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	RawRows          int       `json:"raw_rows"`
	SubjectsScored   int       `json:"subjects_scored"`
	AlertsRaised     int       `json:"alerts_raised"`
	AlertsSuppressed int       `json:"alerts_suppressed"`
	// Degraded lists per-subject extraction failures. The cycle still
	// commits; the failures explain which subjects may be missing data.
	Degraded []string `json:"degraded,omitempty"`
}
