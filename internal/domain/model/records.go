package model

import "time"

// Appointment statuses as stored in the source system.
const (
	StatusScheduled = "scheduled"
	StatusDone      = "done"
	StatusNoShow    = "no_show"
	StatusCancelled = "cancelled"
)

// Appointment is a raw booking record from the source system.
// ArrivalTime and ConsultStartTime are nil when the patient never
// arrived or the consult never started.
type Appointment struct {
	AppointmentID    string
	DoctorID         string
	ClinicID         string
	ScheduledTime    time.Time
	ArrivalTime      *time.Time
	ConsultStartTime *time.Time
	Status           string
	IsFollowup       bool
}

// Admission is a raw inpatient stay. DischargeDate is nil while the
// patient is still admitted.
type Admission struct {
	AdmissionID   string
	PatientID     string
	DoctorID      string
	AdmissionDate time.Time
	DischargeDate *time.Time
}

// PatientSurvey is a post-appointment satisfaction response with a
// 0-10 rating.
type PatientSurvey struct {
	SurveyID      string
	AppointmentID string
	Rating        float64
	CreatedAt     time.Time
}

// Doctor is a scored subject from the provider registry.
type Doctor struct {
	DoctorID string
	Name     string
}
