// Package source reads raw transactional records from the booking
// database and materializes the per-cycle snapshot.
package source

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/caredash/kpiengine/internal/domain/extract"
	"github.com/caredash/kpiengine/internal/domain/model"
)

// dischargeSettleSpan pads the admission query past the readmission
// lookback so readmissions right at the window edge are visible.
const dischargeSettleSpan = 30 * 24 * time.Hour

// Store provides read access to the four source record sets.
type Store struct {
	db *gorm.DB
}

// Open connects to the source database. driver is "sqlite" or
// "postgres".
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	return NewStore(db)
}

// NewStore wraps an existing gorm handle. Source tables are migrated
// for the embedded-sqlite development path; against a production
// database the migration is a no-op when tables already exist.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&appointmentRow{}, &admissionRow{}, &patientSurveyRow{}, &doctorRow{}); err != nil {
		return nil, fmt.Errorf("migrate source tables: %w", err)
	}
	return &Store{db: db}, nil
}

// LoadSnapshot takes one consistent read of the source tables, bounded
// by the widest lookback the extractors need. All reads happen inside
// a single transaction so no extractor observes a partially-updated
// source.
func (s *Store) LoadSnapshot(ctx context.Context, maxLookback time.Duration) (*extract.Snapshot, error) {
	takenAt := time.Now().UTC()
	cutoff := takenAt.Add(-maxLookback)

	snap := &extract.Snapshot{TakenAt: takenAt}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doctors []doctorRow
		if err := tx.Find(&doctors).Error; err != nil {
			return fmt.Errorf("load doctors: %w", err)
		}
		var appointments []appointmentRow
		if err := tx.Where("scheduled_time >= ?", cutoff).Find(&appointments).Error; err != nil {
			return fmt.Errorf("load appointments: %w", err)
		}
		// Readmissions can start up to 30 days after a discharge at
		// the window edge, so admissions are fetched with padding.
		var admissions []admissionRow
		if err := tx.Where("admission_date >= ? OR discharge_date >= ?",
			cutoff.Add(-dischargeSettleSpan), cutoff).Find(&admissions).Error; err != nil {
			return fmt.Errorf("load admissions: %w", err)
		}
		var surveys []patientSurveyRow
		if err := tx.Where("created_at >= ?", cutoff).Find(&surveys).Error; err != nil {
			return fmt.Errorf("load patient surveys: %w", err)
		}

		snap.Doctors = make([]model.Doctor, len(doctors))
		for i, r := range doctors {
			snap.Doctors[i] = r.toModel()
		}
		snap.Appointments = make([]model.Appointment, len(appointments))
		for i, r := range appointments {
			snap.Appointments[i] = r.toModel()
		}
		snap.Admissions = make([]model.Admission, len(admissions))
		for i, r := range admissions {
			snap.Admissions[i] = r.toModel()
		}
		snap.Surveys = make([]model.PatientSurvey, len(surveys))
		for i, r := range surveys {
			snap.Surveys[i] = r.toModel()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Seeding writes, used by the seed-data tool only. The engine itself
// never mutates source data.

// SaveDoctors upserts doctors.
func (s *Store) SaveDoctors(ctx context.Context, doctors []model.Doctor) error {
	for _, d := range doctors {
		row := doctorRow{DoctorID: d.DoctorID, Name: d.Name}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("save doctor %s: %w", d.DoctorID, err)
		}
	}
	return nil
}

// SaveAppointments upserts appointments.
func (s *Store) SaveAppointments(ctx context.Context, appointments []model.Appointment) error {
	for _, a := range appointments {
		row := appointmentRow{
			AppointmentID:    a.AppointmentID,
			DoctorID:         a.DoctorID,
			ClinicID:         a.ClinicID,
			ScheduledTime:    a.ScheduledTime,
			ArrivalTime:      a.ArrivalTime,
			ConsultStartTime: a.ConsultStartTime,
			Status:           a.Status,
			IsFollowup:       a.IsFollowup,
		}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("save appointment %s: %w", a.AppointmentID, err)
		}
	}
	return nil
}

// SaveAdmissions upserts admissions.
func (s *Store) SaveAdmissions(ctx context.Context, admissions []model.Admission) error {
	for _, a := range admissions {
		row := admissionRow{
			AdmissionID:   a.AdmissionID,
			PatientID:     a.PatientID,
			DoctorID:      a.DoctorID,
			AdmissionDate: a.AdmissionDate,
			DischargeDate: a.DischargeDate,
		}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("save admission %s: %w", a.AdmissionID, err)
		}
	}
	return nil
}

// SaveSurveys upserts patient surveys.
func (s *Store) SaveSurveys(ctx context.Context, surveys []model.PatientSurvey) error {
	for _, sv := range surveys {
		row := patientSurveyRow{
			SurveyID:      sv.SurveyID,
			AppointmentID: sv.AppointmentID,
			Rating:        sv.Rating,
			CreatedAt:     sv.CreatedAt,
		}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return fmt.Errorf("save survey %s: %w", sv.SurveyID, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	return sqlDB.Close()
}
