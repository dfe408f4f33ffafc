package seeddata

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/caredash/kpiengine/internal/domain/model"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	profileDivisor     = 5
)

// Performance profile cases. Each doctor gets one profile that shapes
// every metric so the generated population has real spread.
const (
	caseStrong = iota
	caseAverage
	caseSlow
	caseRisky
	caseStruggling
)

// profile shapes one doctor's synthetic data.
type profile struct {
	ratingMin, ratingRange float64 // survey rating band on 0-10
	waitMin, waitRange     float64 // consult wait band in minutes
	noShowProb             float64 // chance a scheduled visit no-shows
	surveyProb             float64 // chance a done visit gets a survey
	admitProb              float64 // chance a done visit admits the patient
	readmitProb            float64 // chance a discharge readmits within 30d
	followupProb           float64 // chance a flagged follow-up is completed
	followupFlagProb       float64 // chance a done visit is flagged for follow-up
}

var profiles = map[int]profile{
	caseStrong: {
		ratingMin: 8.0, ratingRange: 2.0,
		waitMin: 5, waitRange: 10,
		noShowProb: 0.04, surveyProb: 0.6,
		admitProb: 0.05, readmitProb: 0.02,
		followupProb: 0.9, followupFlagProb: 0.3,
	},
	caseAverage: {
		ratingMin: 6.0, ratingRange: 3.0,
		waitMin: 10, waitRange: 20,
		noShowProb: 0.10, surveyProb: 0.5,
		admitProb: 0.08, readmitProb: 0.05,
		followupProb: 0.7, followupFlagProb: 0.3,
	},
	caseSlow: {
		ratingMin: 5.0, ratingRange: 3.0,
		waitMin: 30, waitRange: 25,
		noShowProb: 0.12, surveyProb: 0.4,
		admitProb: 0.08, readmitProb: 0.05,
		followupProb: 0.6, followupFlagProb: 0.3,
	},
	caseRisky: {
		ratingMin: 5.0, ratingRange: 4.0,
		waitMin: 10, waitRange: 20,
		noShowProb: 0.10, surveyProb: 0.5,
		admitProb: 0.15, readmitProb: 0.12,
		followupProb: 0.6, followupFlagProb: 0.4,
	},
	caseStruggling: {
		ratingMin: 2.0, ratingRange: 4.0,
		waitMin: 25, waitRange: 30,
		noShowProb: 0.20, surveyProb: 0.4,
		admitProb: 0.10, readmitProb: 0.10,
		followupProb: 0.4, followupFlagProb: 0.3,
	},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomInt(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// dataset is one generated batch ready to persist.
type dataset struct {
	doctors      []model.Doctor
	appointments []model.Appointment
	admissions   []model.Admission
	surveys      []model.PatientSurvey
}

// generate builds a full synthetic dataset per the config.
func generate(cfg *Config) *dataset {
	now := time.Now().UTC()
	span := time.Duration(cfg.DaysBack) * 24 * time.Hour

	clinics := make([]string, cfg.NumClinics)
	for i := range clinics {
		clinics[i] = fmt.Sprintf("clinic-%02d", i+1)
	}

	ds := &dataset{}
	for i := 0; i < cfg.NumDoctors; i++ {
		doctorID := uuid.NewString()
		p := profiles[randomInt(profileDivisor)]
		ds.doctors = append(ds.doctors, model.Doctor{
			DoctorID: doctorID,
			Name:     fmt.Sprintf("Dr. %s %d", surnames[i%len(surnames)], i+1),
		})

		for j := 0; j < cfg.ApptsPerDoctor; j++ {
			scheduled := now.Add(-time.Duration(getRandomFloat() * float64(span)))
			appt := model.Appointment{
				AppointmentID: uuid.NewString(),
				DoctorID:      doctorID,
				ClinicID:      clinics[randomInt(len(clinics))],
				ScheduledTime: scheduled,
				Status:        model.StatusDone,
			}

			appt.IsFollowup = getRandomFloat() < p.followupFlagProb

			missProb := p.noShowProb
			if appt.IsFollowup {
				// Follow-up adherence is driven by how often flagged
				// visits are actually completed.
				missProb = 1 - p.followupProb
			}
			switch {
			case getRandomFloat() < missProb:
				appt.Status = model.StatusNoShow
			case getRandomFloat() < cancelProb:
				appt.Status = model.StatusCancelled
			}

			if appt.Status == model.StatusDone {
				arrival := scheduled.Add(-time.Duration(getRandomFloat()*earlyArrivalMinutes) * time.Minute)
				wait := p.waitMin + getRandomFloat()*p.waitRange
				consult := arrival.Add(time.Duration(wait * float64(time.Minute)))
				appt.ArrivalTime = &arrival
				appt.ConsultStartTime = &consult

				if getRandomFloat() < p.surveyProb {
					ds.surveys = append(ds.surveys, model.PatientSurvey{
						SurveyID:      uuid.NewString(),
						AppointmentID: appt.AppointmentID,
						Rating:        clampRating(p.ratingMin + getRandomFloat()*p.ratingRange),
						CreatedAt:     consult.Add(surveyDelay),
					})
				}

				if getRandomFloat() < p.admitProb {
					ds.admissions = append(ds.admissions, makeAdmissions(doctorID, consult, p)...)
				}
			}

			ds.appointments = append(ds.appointments, appt)
		}
	}
	return ds
}

// makeAdmissions builds one admission, plus a readmission within 30
// days of discharge when the profile rolls one.
func makeAdmissions(doctorID string, admitted time.Time, p profile) []model.Admission {
	patientID := uuid.NewString()
	stay := time.Duration(1+getRandomFloat()*maxStayDays) * 24 * time.Hour
	discharged := admitted.Add(stay)

	first := model.Admission{
		AdmissionID:   uuid.NewString(),
		PatientID:     patientID,
		DoctorID:      doctorID,
		AdmissionDate: admitted,
		DischargeDate: &discharged,
	}
	out := []model.Admission{first}

	if getRandomFloat() < p.readmitProb {
		gap := time.Duration(1+getRandomFloat()*maxReadmitGapDays) * 24 * time.Hour
		readmitted := discharged.Add(gap)
		out = append(out, model.Admission{
			AdmissionID:   uuid.NewString(),
			PatientID:     patientID,
			DoctorID:      doctorID,
			AdmissionDate: readmitted,
		})
	}
	return out
}

func clampRating(r float64) float64 {
	if r > 10 {
		return 10
	}
	if r < 0 {
		return 0
	}
	return r
}

// Generation tuning constants.
const (
	cancelProb          = 0.05
	earlyArrivalMinutes = 20.0
	maxStayDays         = 6.0
	maxReadmitGapDays   = 28.0
	surveyDelay         = 2 * time.Hour
)

var surnames = []string{
	"Okafor", "Lindgren", "Marchetti", "Haddad", "Petrova",
	"Yamada", "Novak", "Doyle", "Ferreira", "Ashby",
}
