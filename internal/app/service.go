// Package service provides the refresh orchestrator that implements
// the dependencies required by the HTTP API and the scheduler.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/caredash/kpiengine/internal/adapters/repository"
	"github.com/caredash/kpiengine/internal/domain/alerting"
	"github.com/caredash/kpiengine/internal/domain/extract"
	"github.com/caredash/kpiengine/internal/domain/model"
	"github.com/caredash/kpiengine/internal/domain/scoring"
	"github.com/caredash/kpiengine/pkg/logger"
	"github.com/caredash/kpiengine/pkg/metrics"
)

// SnapshotLoader takes one consistent read of the source tables.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, maxLookback time.Duration) (*extract.Snapshot, error)
}

// Windows carries the per-metric lookback configuration.
type Windows struct {
	Survey      time.Duration
	Wait        time.Duration
	NoShow      time.Duration
	Followup    time.Duration
	Readmission time.Duration
}

// DefaultWindows returns the stock lookbacks: 90 days everywhere,
// 180 days for readmission.
func DefaultWindows() Windows {
	return Windows{
		Survey:      extract.DefaultSurveyWindow,
		Wait:        extract.DefaultWaitWindow,
		NoShow:      extract.DefaultNoShowWindow,
		Followup:    extract.DefaultFollowupWindow,
		Readmission: extract.DefaultReadmissionWindow,
	}
}

// max returns the widest window; the snapshot must cover it.
func (w Windows) max() time.Duration {
	widest := w.Survey
	for _, d := range []time.Duration{w.Wait, w.NoShow, w.Followup, w.Readmission} {
		if d > widest {
			widest = d
		}
	}
	return widest
}

// Service implements the KPI refresh orchestrator. One cycle runs at a
// time; concurrent triggers are rejected, not queued.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	source SnapshotLoader
	store  repository.Store
	scorer *scoring.Scorer
	engine *alerting.Engine

	// Configuration
	windows      Windows
	deadline     time.Duration
	cronSchedule string

	// State
	running     bool
	stage       model.Stage
	lastOutcome *model.CycleOutcome
	started     bool
	cron        *cron.Cron

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the source snapshot loader.
func WithSource(src SnapshotLoader) Option {
	return func(s *Service) { s.source = src }
}

// WithStore sets the persistence store.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithWeights sets the composite scoring weights.
func WithWeights(w scoring.Weights) Option {
	return func(s *Service) { s.scorer = scoring.NewScorer(scoring.WithWeights(w)) }
}

// WithThresholdRules sets the alert threshold rules.
func WithThresholdRules(rules []model.ThresholdRule) Option {
	return func(s *Service) { s.engine = alerting.NewEngine(alerting.WithRules(rules)) }
}

// WithWindows sets the lookback windows.
func WithWindows(w Windows) Option {
	return func(s *Service) { s.windows = w }
}

// WithCycleDeadline bounds one cycle; overrun cancels it. Zero
// disables the deadline.
func WithCycleDeadline(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.deadline = d
		}
	}
}

// WithCronSchedule sets the refresh cadence in cron syntax. Empty
// disables scheduling.
func WithCronSchedule(schedule string) Option {
	return func(s *Service) { s.cronSchedule = schedule }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		scorer:  scoring.NewScorer(),
		engine:  alerting.NewEngine(),
		windows: DefaultWindows(),
		stage:   model.StageIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates collaborators and starts the cron schedule.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("refresh")
	}
	if s.source == nil {
		return fmt.Errorf("%w: no snapshot loader", ErrNotConfigured)
	}
	if s.store == nil {
		return fmt.Errorf("%w: no store", ErrNotConfigured)
	}

	if s.cronSchedule != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.cronSchedule, func() {
			outcome, err := s.RunCycle(context.Background())
			if err != nil {
				s.logger.Warn(context.Background(), "scheduled cycle did not commit",
					logger.String("cycle_id", outcome.CycleID),
					logger.Error(err),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", s.cronSchedule, err)
		}
		s.cron.Start()
		s.logger.Info(ctx, "refresh schedule active", logger.String("schedule", s.cronSchedule))
	}

	s.started = true
	return nil
}

// Stop halts the cron schedule. An in-flight cycle finishes on its own.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	s.started = false
}

// Stage returns the current cycle stage.
func (s *Service) Stage() model.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// LastOutcome returns the most recent cycle outcome, or nil before the
// first cycle.
func (s *Service) LastOutcome() *model.CycleOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome
}

func (s *Service) setStage(stage model.Stage) {
	s.mu.Lock()
	s.stage = stage
	s.mu.Unlock()
}

// tryAcquire marks the service busy. Returns false when a cycle is
// already in flight.
func (s *Service) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("refresh")
	}
	s.running = true
	return true
}

func (s *Service) release(outcome *model.CycleOutcome) {
	s.mu.Lock()
	s.running = false
	s.lastOutcome = outcome
	s.mu.Unlock()
}

// RunCycle executes one full refresh cycle: snapshot, extraction,
// normalization and scoring, alert evaluation, transactional commit.
// Partial results from a failed cycle are discarded; nothing reaches
// storage unless every stage succeeds.
func (s *Service) RunCycle(ctx context.Context) (model.CycleOutcome, error) {
	if !s.tryAcquire() {
		metrics.RecordCycleRejected()
		return model.CycleOutcome{State: model.StageFailed, Error: ErrCycleInProgress.Error()}, ErrCycleInProgress
	}

	outcome := model.CycleOutcome{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		s.setStage(model.StageIdle)
		s.release(&outcome)
	}()

	metrics.RecordCycleStarted()
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	fail := func(stage model.Stage, err error) (model.CycleOutcome, error) {
		outcome.State = model.StageFailed
		outcome.FailedStage = stage
		outcome.Error = err.Error()
		outcome.FinishedAt = time.Now().UTC()
		metrics.RecordCycleFailed(string(stage))
		s.logger.Error(ctx, "cycle failed",
			logger.String("cycle_id", outcome.CycleID),
			logger.String("stage", string(stage)),
			logger.Error(err),
		)
		return outcome, fmt.Errorf("cycle %s failed in %s: %w", outcome.CycleID, stage, err)
	}

	// Extracting
	s.setStage(model.StageExtracting)
	stageStart := time.Now()
	snap, err := s.source.LoadSnapshot(ctx, s.windows.max())
	if err != nil {
		return fail(model.StageExtracting, err)
	}
	rows, failures := extract.RunAll(ctx, snap, s.extractors())
	metrics.RecordStageDuration(string(model.StageExtracting), time.Since(stageStart).Seconds())
	metrics.RecordRowsExtracted(len(rows))
	metrics.RecordExtractionFailures(len(failures))
	outcome.RawRows = len(rows)
	for _, f := range failures {
		outcome.Degraded = append(outcome.Degraded, f.String())
	}
	if err := ctx.Err(); err != nil {
		return fail(model.StageExtracting, err)
	}

	// Scoring
	s.setStage(model.StageScoring)
	stageStart = time.Now()
	scores := s.scoreAll(snap, rows, time.Now().UTC())
	metrics.RecordStageDuration(string(model.StageScoring), time.Since(stageStart).Seconds())
	outcome.SubjectsScored = len(scores)
	if err := ctx.Err(); err != nil {
		return fail(model.StageScoring, err)
	}

	// Alerting
	s.setStage(model.StageAlerting)
	stageStart = time.Now()
	result, err := s.engine.Evaluate(ctx, rows, s.store, time.Now().UTC())
	if err != nil {
		return fail(model.StageAlerting, err)
	}
	metrics.RecordStageDuration(string(model.StageAlerting), time.Since(stageStart).Seconds())
	outcome.AlertsRaised = len(result.New)
	outcome.AlertsSuppressed = result.Suppressed
	metrics.RecordAlertsSuppressed(result.Suppressed)
	if err := ctx.Err(); err != nil {
		return fail(model.StageAlerting, err)
	}

	// Commit
	if err := s.store.CommitCycle(ctx, outcome.CycleID, scores, result.New); err != nil {
		return fail(model.StageAlerting, err)
	}
	for _, a := range result.New {
		metrics.RecordAlertRaised(a.Type, string(a.Severity))
	}
	metrics.UpdateSubjectsScored(len(scores))
	metrics.RecordCycleCommitted()

	outcome.State = model.StageCommitted
	outcome.FinishedAt = time.Now().UTC()
	metrics.RecordCycleDuration(outcome.FinishedAt.Sub(outcome.StartedAt).Seconds())
	s.setStage(model.StageCommitted)

	s.logger.Info(ctx, "cycle committed",
		logger.String("cycle_id", outcome.CycleID),
		logger.Int("raw_rows", outcome.RawRows),
		logger.Int("subjects_scored", outcome.SubjectsScored),
		logger.Int("alerts_raised", outcome.AlertsRaised),
		logger.Int("alerts_suppressed", outcome.AlertsSuppressed),
		logger.Int("degraded", len(outcome.Degraded)),
		logger.Duration("took", outcome.FinishedAt.Sub(outcome.StartedAt)),
	)
	return outcome, nil
}

func (s *Service) extractors() []extract.Extractor {
	return []extract.Extractor{
		extract.NewSurveyExtractor(extract.WithSurveyLookback(s.windows.Survey)),
		extract.NewReadmissionExtractor(extract.WithReadmissionLookback(s.windows.Readmission)),
		extract.NewWaitExtractor(extract.WithWaitLookback(s.windows.Wait)),
		extract.NewNoShowExtractor(extract.WithNoShowLookback(s.windows.NoShow)),
		extract.NewFollowupExtractor(extract.WithFollowupLookback(s.windows.Followup)),
	}
}
