package alerting

import "errors"

// Sentinel kinds for alerting errors.
var (
	ErrInvalidRule = errors.New("invalid threshold rule")
)
