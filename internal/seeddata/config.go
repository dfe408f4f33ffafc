// Package seeddata generates synthetic clinical source data for local
// development and demos.
package seeddata

import "time"

// Config holds configuration for the seed run.
type Config struct {
	DBDriver       string // sqlite or postgres
	DBDSN          string // database connection string
	NumDoctors     int    // number of doctors to generate
	NumClinics     int    // number of clinics doctors rotate through
	ApptsPerDoctor int    // appointments per doctor over the window
	DaysBack       int    // how far back generated records reach
	Verbose        bool   // enable verbose logging
}

// Stats holds seed run statistics.
type Stats struct {
	Doctors      int
	Appointments int
	Admissions   int
	Surveys      int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
