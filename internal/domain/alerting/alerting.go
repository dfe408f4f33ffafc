// Package alerting evaluates raw metric rows against configured
// thresholds and manages the resulting alert candidates.
package alerting

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Stock thresholds, matching the operations team's runbook defaults.
const (
	defaultRatingThreshold      = 6.0
	defaultReadmissionThreshold = 8.0
	defaultWaitThreshold        = 30.0
	defaultNoShowThreshold      = 0.15
)

// OpenAlertChecker answers whether an unacknowledged alert with the
// given identity already exists. Acknowledged alerts never suppress new
// candidates: a resolved-then-recurring condition raises a fresh alert.
type OpenAlertChecker interface {
	OpenAlertExists(ctx context.Context, id model.AlertIdentity) (bool, error)
}

// Result summarizes one evaluation pass.
type Result struct {
	// New holds alerts that passed deduplication and should be
	// committed with the cycle.
	New []model.Alert
	// Suppressed counts candidates dropped because an open alert with
	// the same identity already exists.
	Suppressed int
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRules replaces the default threshold rules.
func WithRules(rules []model.ThresholdRule) Option {
	return func(e *Engine) {
		if len(rules) > 0 {
			e.rules = rules
		}
	}
}

// Engine evaluates threshold rules over a cycle's raw metric rows.
type Engine struct {
	rules []model.ThresholdRule
}

// NewEngine creates an alert engine with configuration options. Rules
// must be validated with ValidateRules before the engine is built.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rules: DefaultRules()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rules returns the active threshold rules.
func (e *Engine) Rules() []model.ThresholdRule { return e.rules }

// DefaultRules returns the stock rule set: low patient rating per
// doctor, high 30-day readmission per doctor, high average wait per
// clinic, high no-show rate per clinic.
func DefaultRules() []model.ThresholdRule {
	return []model.ThresholdRule{
		{
			AlertType:  model.AlertLowNPS,
			ObjectType: model.SubjectDoctor,
			Metric:     model.MetricAvgRating,
			Comparison: model.CompareLTE,
			Threshold:  defaultRatingThreshold,
			Severity:   model.SeverityMedium,
		},
		{
			AlertType:  model.AlertHighReadmission,
			ObjectType: model.SubjectDoctor,
			Metric:     model.MetricReadmission,
			Comparison: model.CompareGTE,
			Threshold:  defaultReadmissionThreshold,
			Severity:   model.SeverityHigh,
		},
		{
			AlertType:  model.AlertHighWait,
			ObjectType: model.SubjectClinic,
			Metric:     model.MetricAvgWait,
			Comparison: model.CompareGTE,
			Threshold:  defaultWaitThreshold,
			Severity:   model.SeverityMedium,
		},
		{
			AlertType:  model.AlertHighNoShow,
			ObjectType: model.SubjectClinic,
			Metric:     model.MetricNoShowRate,
			Comparison: model.CompareGTE,
			Threshold:  defaultNoShowThreshold,
			Severity:   model.SeverityMedium,
		},
	}
}

// knownMetrics are the metric names extractors can produce.
var knownMetrics = map[string]bool{
	model.MetricAvgRating:   true,
	model.MetricNPSPct:      true,
	model.MetricReadmission: true,
	model.MetricAvgWait:     true,
	model.MetricMedianWait:  true,
	model.MetricNoShowRate:  true,
	model.MetricFollowup:    true,
}

// ValidateRules rejects rules naming unknown metrics or carrying
// malformed operators, severities or thresholds. Called at config load;
// the engine never runs a cycle with an invalid rule set.
func ValidateRules(rules []model.ThresholdRule) error {
	for i, r := range rules {
		switch {
		case r.AlertType == "":
			return fmt.Errorf("%w: rule %d has no alert type", ErrInvalidRule, i)
		case !knownMetrics[r.Metric]:
			return fmt.Errorf("%w: rule %q names unknown metric %q", ErrInvalidRule, r.AlertType, r.Metric)
		case !r.Comparison.Valid():
			return fmt.Errorf("%w: rule %q has unknown comparison %q", ErrInvalidRule, r.AlertType, r.Comparison)
		case !r.Severity.Valid():
			return fmt.Errorf("%w: rule %q has unknown severity %q", ErrInvalidRule, r.AlertType, r.Severity)
		case math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0):
			return fmt.Errorf("%w: rule %q has non-finite threshold", ErrInvalidRule, r.AlertType)
		case r.ObjectType != model.SubjectDoctor && r.ObjectType != model.SubjectClinic:
			return fmt.Errorf("%w: rule %q has unknown object type %q", ErrInvalidRule, r.AlertType, r.ObjectType)
		}
	}
	return nil
}

// Evaluate checks every rule against the cycle's raw rows and dedupes
// candidates against open alerts from prior cycles. Rows with a nil
// value never trigger. Returned alerts are not yet persisted; the
// orchestrator commits them with the rest of the cycle.
func (e *Engine) Evaluate(ctx context.Context, rows []model.RawMetricRow, open OpenAlertChecker, now time.Time) (Result, error) {
	var res Result
	for _, rule := range e.rules {
		for _, row := range rows {
			if row.SubjectType != rule.ObjectType || row.Metric != rule.Metric || row.Value == nil {
				continue
			}
			if !rule.Comparison.Holds(*row.Value, rule.Threshold) {
				continue
			}

			candidate := model.Alert{
				CreatedAt:  now,
				Type:       rule.AlertType,
				ObjectType: rule.ObjectType,
				ObjectID:   row.SubjectID,
				Metric:     rule.Metric,
				Value:      *row.Value,
				Threshold:  rule.Threshold,
				Severity:   rule.Severity,
				Message:    formatMessage(rule, row),
			}

			exists, err := open.OpenAlertExists(ctx, candidate.Identity())
			if err != nil {
				return Result{}, fmt.Errorf("alert dedup check: %w", err)
			}
			if exists {
				res.Suppressed++
				continue
			}
			res.New = append(res.New, candidate)
		}
	}
	return res, nil
}

func symbol(c model.Comparison) string {
	if c == model.CompareGTE {
		return ">="
	}
	return "<="
}

// formatMessage renders a human-readable breach description. Values use
// the metric's natural precision: one decimal for minutes and ratings,
// two for percentages; fraction metrics render as percentages.
func formatMessage(rule model.ThresholdRule, row model.RawMetricRow) string {
	value := formatMetricValue(rule.Metric, *row.Value)
	threshold := formatMetricValue(rule.Metric, rule.Threshold)
	msg := fmt.Sprintf("%s for %s %s = %s %s %s",
		metricPhrase(rule.Metric), rule.ObjectType, row.SubjectID, value, symbol(rule.Comparison), threshold)
	if rule.Metric == model.MetricAvgRating {
		msg += fmt.Sprintf(" (responses: %d)", row.SampleSize)
	}
	return msg
}

func metricPhrase(metric string) string {
	switch metric {
	case model.MetricAvgRating:
		return "average patient rating"
	case model.MetricNPSPct:
		return "net promoter score"
	case model.MetricReadmission:
		return "30-day readmission rate"
	case model.MetricAvgWait:
		return "average wait"
	case model.MetricMedianWait:
		return "median wait"
	case model.MetricNoShowRate:
		return "no-show rate"
	case model.MetricFollowup:
		return "follow-up adherence"
	}
	return metric
}

func formatMetricValue(metric string, v float64) string {
	switch metric {
	case model.MetricAvgWait, model.MetricMedianWait:
		return strconv.FormatFloat(v, 'f', 1, 64) + " min"
	case model.MetricAvgRating:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case model.MetricNoShowRate, model.MetricFollowup:
		// Stored as a fraction; rendered as a percentage.
		return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
	default:
		return strconv.FormatFloat(v, 'f', 2, 64) + "%"
	}
}
