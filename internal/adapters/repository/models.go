package repository

import (
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// compositeScoreRow is the gorm mapping for composite scores. Rows are
// append-only; readers select the latest cycle.
type compositeScoreRow struct {
	ID               uint64 `gorm:"primaryKey;autoIncrement"`
	CycleID          string `gorm:"size:36;index"`
	SubjectID        string `gorm:"size:64;index"`
	SubjectName      string `gorm:"size:255"`
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

func (compositeScoreRow) TableName() string { return "composite_scores" }

func (r compositeScoreRow) toModel() model.CompositeScore {
	return model.CompositeScore{
		SubjectID:        r.SubjectID,
		SubjectName:      r.SubjectName,
		ResponsesCount:   r.ResponsesCount,
		NPSPct:           r.NPSPct,
		ReadmissionPct:   r.ReadmissionPct,
		AvgWaitMinutes:   r.AvgWaitMinutes,
		FollowupPct:      r.FollowupPct,
		NPSNorm:          r.NPSNorm,
		ReadmissionNorm:  r.ReadmissionNorm,
		WaitNorm:         r.WaitNorm,
		FollowupNorm:     r.FollowupNorm,
		VolumeAdjustment: r.VolumeAdjustment,
		Composite:        r.Composite,
		ComputedAt:       r.ComputedAt,
	}
}

func scoreRowFrom(cycleID string, s model.CompositeScore) compositeScoreRow {
	return compositeScoreRow{
		CycleID:          cycleID,
		SubjectID:        s.SubjectID,
		SubjectName:      s.SubjectName,
		ResponsesCount:   s.ResponsesCount,
		NPSPct:           s.NPSPct,
		ReadmissionPct:   s.ReadmissionPct,
		AvgWaitMinutes:   s.AvgWaitMinutes,
		FollowupPct:      s.FollowupPct,
		NPSNorm:          s.NPSNorm,
		ReadmissionNorm:  s.ReadmissionNorm,
		WaitNorm:         s.WaitNorm,
		FollowupNorm:     s.FollowupNorm,
		VolumeAdjustment: s.VolumeAdjustment,
		Composite:        s.Composite,
		ComputedAt:       s.ComputedAt,
	}
}

// alertRow is the gorm mapping for alerts. The autoincrement primary
// key doubles as the monotonic alert id; rows are never deleted.
type alertRow struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	CreatedAt      time.Time
	AlertType      string `gorm:"size:64;index:idx_alert_identity"`
	ObjectType     string `gorm:"size:16;index:idx_alert_identity"`
	ObjectID       string `gorm:"size:64;index:idx_alert_identity"`
	Metric         string `gorm:"size:64;index:idx_alert_identity"`
	Value          float64
	Threshold      float64
	Severity       string `gorm:"size:16"`
	Message        string `gorm:"type:text"`
	Acknowledged   bool   `gorm:"index"`
	AcknowledgedBy string `gorm:"size:128"`
	AcknowledgedAt *time.Time
}

func (alertRow) TableName() string { return "kpi_alerts" }

func (r alertRow) toModel() model.Alert {
	return model.Alert{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		Type:           r.AlertType,
		ObjectType:     model.SubjectType(r.ObjectType),
		ObjectID:       r.ObjectID,
		Metric:         r.Metric,
		Value:          r.Value,
		Threshold:      r.Threshold,
		Severity:       model.Severity(r.Severity),
		Message:        r.Message,
		Acknowledged:   r.Acknowledged,
		AcknowledgedBy: r.AcknowledgedBy,
		AcknowledgedAt: r.AcknowledgedAt,
	}
}

func alertRowFrom(a model.Alert) alertRow {
	return alertRow{
		CreatedAt:      a.CreatedAt,
		AlertType:      a.Type,
		ObjectType:     string(a.ObjectType),
		ObjectID:       a.ObjectID,
		Metric:         a.Metric,
		Value:          a.Value,
		Threshold:      a.Threshold,
		Severity:       string(a.Severity),
		Message:        a.Message,
		Acknowledged:   a.Acknowledged,
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: a.AcknowledgedAt,
	}
}
