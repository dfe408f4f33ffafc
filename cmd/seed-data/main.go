package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/caredash/kpiengine/internal/seeddata"
	"github.com/caredash/kpiengine/pkg/logger"
)

// Default configuration constants.
const (
	defaultDoctors        = 25
	defaultClinics        = 4
	defaultApptsPerDoctor = 120
	defaultDaysBack       = 180
	defaultRunTimeout     = 5 * time.Minute
)

func main() {
	var (
		driver  = flag.String("driver", "sqlite", "Database driver (sqlite or postgres)")
		dsn     = flag.String("dsn", "kpiengine.db", "Database connection string")
		doctors = flag.Int("doctors", defaultDoctors, "Number of doctors to generate")
		clinics = flag.Int("clinics", defaultClinics, "Number of clinics")
		appts   = flag.Int("appointments", defaultApptsPerDoctor, "Appointments per doctor")
		days    = flag.Int("days", defaultDaysBack, "How many days back records reach")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &seeddata.Config{
		DBDriver:       *driver,
		DBDSN:          *dsn,
		NumDoctors:     *doctors,
		NumClinics:     *clinics,
		ApptsPerDoctor: *appts,
		DaysBack:       *days,
		Verbose:        *verbose,
	}

	if _, err := seeddata.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
