package service

import "errors"

// Service errors.
var (
	// ErrCycleInProgress is returned when a refresh trigger arrives
	// while another cycle is still running.
	ErrCycleInProgress = errors.New("refresh cycle already in progress")

	// ErrNotConfigured is returned by Start when a required
	// collaborator is missing.
	ErrNotConfigured = errors.New("service not configured")
)
