// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() defaults and Load(ctx) layering file and env on top.
// - Validation happens at load time; a cycle never runs on bad config.
package config

import (
	"github.com/caredash/kpiengine/internal/domain/alerting"
	"github.com/caredash/kpiengine/internal/domain/model"
	"github.com/caredash/kpiengine/internal/domain/scoring"
)

// Default lookback windows in days.
const (
	defaultSurveyWindowDays      = 90
	defaultWaitWindowDays        = 90
	defaultNoShowWindowDays      = 90
	defaultFollowupWindowDays    = 90
	defaultReadmissionWindowDays = 180
)

// ThresholdRule mirrors model.ThresholdRule with koanf tags.
type ThresholdRule struct {
	AlertType  string  `koanf:"alert_type"`
	ObjectType string  `koanf:"object_type"`
	Metric     string  `koanf:"metric"`
	Comparison string  `koanf:"comparison"`
	Threshold  float64 `koanf:"threshold"`
	Severity   string  `koanf:"severity"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DBDriver selects the storage backend: sqlite or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the database connection string. For sqlite this is a
	// file path (or :memory:).
	DBDSN string `koanf:"db_dsn"`

	// CronSchedule triggers a refresh cycle on a cadence. Empty
	// disables scheduling; cycles then run only via the HTTP trigger.
	CronSchedule string `koanf:"cron_schedule"`

	// CycleDeadlineSec bounds one refresh cycle; overrun cancels the
	// cycle. Zero means no deadline.
	CycleDeadlineSec int `koanf:"cycle_deadline_sec"`

	// Lookback windows per metric, in days.
	SurveyWindowDays      int `koanf:"survey_window_days"`
	WaitWindowDays        int `koanf:"wait_window_days"`
	NoShowWindowDays      int `koanf:"noshow_window_days"`
	FollowupWindowDays    int `koanf:"followup_window_days"`
	ReadmissionWindowDays int `koanf:"readmission_window_days"`

	// Weights blends normalized components into the composite. Must
	// sum to 1.
	Weights scoring.Weights `koanf:"weights"`

	// Thresholds configures alert rules. Empty uses the stock rules.
	Thresholds []ThresholdRule `koanf:"thresholds"`

	// MaxListLimit caps ?limit on list endpoints.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9090",
		DBDriver:              "sqlite",
		DBDSN:                 "kpiengine.db",
		CronSchedule:          "0 * * * *",
		CycleDeadlineSec:      300,
		SurveyWindowDays:      defaultSurveyWindowDays,
		WaitWindowDays:        defaultWaitWindowDays,
		NoShowWindowDays:      defaultNoShowWindowDays,
		FollowupWindowDays:    defaultFollowupWindowDays,
		ReadmissionWindowDays: defaultReadmissionWindowDays,
		Weights:               scoring.DefaultWeights(),
		MaxListLimit:          500,
	}
}

// ThresholdRules converts the configured thresholds to domain rules.
// Empty configuration falls back to the engine's stock rules.
func (c *Config) ThresholdRules() []model.ThresholdRule {
	if len(c.Thresholds) == 0 {
		return alerting.DefaultRules()
	}
	rules := make([]model.ThresholdRule, len(c.Thresholds))
	for i, t := range c.Thresholds {
		rules[i] = model.ThresholdRule{
			AlertType:  t.AlertType,
			ObjectType: model.SubjectType(t.ObjectType),
			Metric:     t.Metric,
			Comparison: model.Comparison(t.Comparison),
			Threshold:  t.Threshold,
			Severity:   model.Severity(t.Severity),
		}
	}
	return rules
}
