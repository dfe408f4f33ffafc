package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

// Open connects to the configured database and returns a migrated
// store. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*GormStore, error) {
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
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewGormStore(db)
}

// NewGormStore wraps an existing gorm handle and migrates the output
// tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&compositeScoreRow{}, &alertRow{}); err != nil {
		return nil, fmt.Errorf("migrate output tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CommitCycle writes scores and alerts in one transaction.
func (s *GormStore) CommitCycle(ctx context.Context, cycleID string, scores []model.CompositeScore, alerts []model.Alert) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, score := range scores {
			row := scoreRowFrom(cycleID, score)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("write composite score for %s: %w", score.SubjectID, err)
			}
		}
		for _, alert := range alerts {
			row := alertRowFrom(alert)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("write alert %s/%s: %w", alert.Type, alert.ObjectID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit cycle %s: %w", cycleID, err)
	}
	return nil
}

// OpenAlertExists checks for an unacknowledged alert with the identity.
func (s *GormStore) OpenAlertExists(ctx context.Context, id model.AlertIdentity) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&alertRow{}).
		Where("alert_type = ? AND object_type = ? AND object_id = ? AND metric = ? AND acknowledged = ?",
			id.Type, string(id.ObjectType), id.ObjectID, id.Metric, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("open alert lookup: %w", err)
	}
	return count > 0, nil
}

// GetAlert returns one alert by id.
func (s *GormStore) GetAlert(ctx context.Context, id uint64) (model.Alert, error) {
	var row alertRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Alert{}, fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Alert{}, fmt.Errorf("alert lookup: %w", err)
	}
	return row.toModel(), nil
}

// Acknowledge marks an alert acknowledged. Re-acknowledging succeeds
// without change and returns the current state.
func (s *GormStore) Acknowledge(ctx context.Context, id uint64, by string, at time.Time) (model.Alert, error) {
	var result model.Alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row alertRow
		if err := tx.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("alert %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("alert lookup: %w", err)
		}
		if row.Acknowledged {
			result = row.toModel()
			return nil
		}
		row.Acknowledged = true
		row.AcknowledgedBy = by
		row.AcknowledgedAt = &at
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("update alert: %w", err)
		}
		result = row.toModel()
		return nil
	})
	if err != nil {
		return model.Alert{}, err
	}
	return result, nil
}

// ListAlerts returns alerts newest first.
func (s *GormStore) ListAlerts(ctx context.Context, onlyOpen bool, limit int) ([]model.Alert, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	q := s.db.WithContext(ctx).Model(&alertRow{}).Order("id DESC").Limit(limit)
	if onlyOpen {
		q = q.Where("acknowledged = ?", false)
	}
	var rows []alertRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	alerts := make([]model.Alert, len(rows))
	for i, row := range rows {
		alerts[i] = row.toModel()
	}
	return alerts, nil
}

// CountOpenAlerts returns the number of unacknowledged alerts.
func (s *GormStore) CountOpenAlerts(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&alertRow{}).
		Where("acknowledged = ?", false).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count open alerts: %w", err)
	}
	return int(count), nil
}

// latestCycleID returns the cycle id of the most recently written
// score row, or empty when no cycle committed yet.
func (s *GormStore) latestCycleID(ctx context.Context) (string, error) {
	var row compositeScoreRow
	err := s.db.WithContext(ctx).Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest cycle lookup: %w", err)
	}
	return row.CycleID, nil
}

// ListScores returns the latest cycle's scores, highest composite first.
func (s *GormStore) ListScores(ctx context.Context, limit int) ([]model.CompositeScore, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	cycleID, err := s.latestCycleID(ctx)
	if err != nil {
		return nil, err
	}
	if cycleID == "" {
		return nil, nil
	}
	var rows []compositeScoreRow
	err = s.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("composite DESC").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	scores := make([]model.CompositeScore, len(rows))
	for i, row := range rows {
		scores[i] = row.toModel()
	}
	return scores, nil
}

// GetScore returns the latest score for one subject.
func (s *GormStore) GetScore(ctx context.Context, subjectID string) (model.CompositeScore, error) {
	var row compositeScoreRow
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CompositeScore{}, fmt.Errorf("subject %s: %w", subjectID, ErrNotFound)
	}
	if err != nil {
		return model.CompositeScore{}, fmt.Errorf("score lookup: %w", err)
	}
	return row.toModel(), nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap sql db: %w", err)
	}
	return sqlDB.Close()
}
