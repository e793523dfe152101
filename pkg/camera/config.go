// Package camera provides frame sources for the gaze loop and their
// runtime-configurable settings.
package camera

import "errors"

// ErrInvalidConfig is returned when a source is opened with a bad config.
var ErrInvalidConfig = errors.New("camera: invalid config")

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is a capture index ("0"), a file path or a stream URL.
	Device string `json:"device"`

	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100 for previews
}

// Resolution limits accepted by Validate
const (
	MinWidth     = 160
	MaxWidth     = 1920
	MinHeight    = 120
	MaxHeight    = 1080
	MaxFramerate = 120
)

// DefaultConfig returns the tracking resolution: 320x240 at 30 FPS.
// The servo gains are tuned in pixels at this size.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     320,
		Height:    240,
		Framerate: 30,
		Quality:   85,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must not be empty")
	}

	// Resolution
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 1920")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 1080")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
