// Package debug provides global debug logging flags
package debug

import (
	"fmt"

	"github.com/teslashibe/go-gaze/internal/log"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Tracking controls whether per-tick tracking logs are shown (skipped ticks, commands).
// Use --debug-tracking flag to enable these very verbose logs
var Tracking bool

// Log emits a formatted message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		log.Info(fmt.Sprintf(format, args...))
	}
}

// TrackLog emits a structured message only if tracking debug mode is enabled
func TrackLog(msg string, args ...any) {
	if Tracking {
		log.Info(msg, append([]any{"component", "tracking"}, args...)...)
	}
}
