package source

import (
	"time"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Row types mirror the transactional schema owned by the booking
// system. The engine reads them; it does not own their lifecycle.

type appointmentRow struct {
	AppointmentID    string `gorm:"primaryKey;size:64"`
	DoctorID         string `gorm:"size:64;index"`
	ClinicID         string `gorm:"size:64;index"`
	ScheduledTime    time.Time `gorm:"index"`
	ArrivalTime      *time.Time
	ConsultStartTime *time.Time
	Status           string `gorm:"size:32"`
	IsFollowup       bool
}

func (appointmentRow) TableName() string { return "appointments" }

func (r appointmentRow) toModel() model.Appointment {
	return model.Appointment{
		AppointmentID:    r.AppointmentID,
		DoctorID:         r.DoctorID,
		ClinicID:         r.ClinicID,
		ScheduledTime:    r.ScheduledTime,
		ArrivalTime:      r.ArrivalTime,
		ConsultStartTime: r.ConsultStartTime,
		Status:           r.Status,
		IsFollowup:       r.IsFollowup,
	}
}

type admissionRow struct {
	AdmissionID   string `gorm:"primaryKey;size:64"`
	PatientID     string `gorm:"size:64;index"`
	DoctorID      string `gorm:"size:64;index"`
	AdmissionDate time.Time `gorm:"index"`
	DischargeDate *time.Time `gorm:"index"`
}

func (admissionRow) TableName() string { return "admissions" }

func (r admissionRow) toModel() model.Admission {
	return model.Admission{
		AdmissionID:   r.AdmissionID,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		AdmissionDate: r.AdmissionDate,
		DischargeDate: r.DischargeDate,
	}
}

type patientSurveyRow struct {
	SurveyID      string `gorm:"primaryKey;size:64"`
	AppointmentID string `gorm:"size:64;index"`
	Rating        float64
	CreatedAt     time.Time `gorm:"index"`
}

func (patientSurveyRow) TableName() string { return "patient_surveys" }

func (r patientSurveyRow) toModel() model.PatientSurvey {
	return model.PatientSurvey{
		SurveyID:      r.SurveyID,
		AppointmentID: r.AppointmentID,
		Rating:        r.Rating,
		CreatedAt:     r.CreatedAt,
	}
}

type doctorRow struct {
	DoctorID string `gorm:"primaryKey;size:64"`
	Name     string `gorm:"size:255"`
}

func (doctorRow) TableName() string { return "doctors" }

func (r doctorRow) toModel() model.Doctor {
	return model.Doctor{DoctorID: r.DoctorID, Name: r.Name}
}
