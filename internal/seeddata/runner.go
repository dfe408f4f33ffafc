package seeddata

import (
	"context"
	"fmt"
	"time"

	"github.com/caredash/kpiengine/internal/adapters/source"
	"github.com/caredash/kpiengine/pkg/logger"
)

// Run generates a synthetic dataset and writes it through the source
// store. Existing rows with the same ids are upserted.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("seeddata")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "generating dataset",
		logger.Int("doctors", cfg.NumDoctors),
		logger.Int("clinics", cfg.NumClinics),
		logger.Int("appointments_per_doctor", cfg.ApptsPerDoctor),
		logger.Int("days_back", cfg.DaysBack),
	)
	ds := generate(cfg)

	store, err := source.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening source store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveDoctors(ctx, ds.doctors); err != nil {
		return nil, fmt.Errorf("saving doctors: %w", err)
	}
	if err := store.SaveAppointments(ctx, ds.appointments); err != nil {
		return nil, fmt.Errorf("saving appointments: %w", err)
	}
	if err := store.SaveAdmissions(ctx, ds.admissions); err != nil {
		return nil, fmt.Errorf("saving admissions: %w", err)
	}
	if err := store.SaveSurveys(ctx, ds.surveys); err != nil {
		return nil, fmt.Errorf("saving surveys: %w", err)
	}

	stats.Doctors = len(ds.doctors)
	stats.Appointments = len(ds.appointments)
	stats.Admissions = len(ds.admissions)
	stats.Surveys = len(ds.surveys)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	log.Info(ctx, "seed complete",
		logger.Int("doctors", stats.Doctors),
		logger.Int("appointments", stats.Appointments),
		logger.Int("admissions", stats.Admissions),
		logger.Int("surveys", stats.Surveys),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}
