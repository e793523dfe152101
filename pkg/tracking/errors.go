package tracking

import "errors"

var (
	// ErrAlreadyConfigured is returned by a second call to Configure.
	ErrAlreadyConfigured = errors.New("tracking: already configured")

	// ErrNotConfigured is returned by Run before Configure has succeeded.
	ErrNotConfigured = errors.New("tracking: not configured")

	// ErrRunning is returned when Run is called while another Run is active.
	ErrRunning = errors.New("tracking: already running")

	// ErrReleased is returned by Run and Configure after Release.
	ErrReleased = errors.New("tracking: released")

	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("tracking: invalid config")
)
