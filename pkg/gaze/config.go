// Package gaze wires the head driver, frame source, tracker, scene mover,
// telemetry and dashboard into one application.
package gaze

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/scene"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// Default configuration values.
const (
	DefaultHeadAddr    = "localhost"
	DefaultCamera      = "0"
	DefaultSceneListen = ":9000"
)

// Config holds all configuration for the gaze application.
// Flag parsing is done in cmd/gaze/main.go; this struct is data only.
type Config struct {
	// Sim runs against the in-memory head, world and camera.
	Sim bool

	// HeadAddr is the control board: host, host:port, URL or "serial:/dev/ttyX".
	HeadAddr string

	// Camera is a capture device index, a file or stream URL, or "webrtc://host".
	Camera       string
	CameraConfig camera.Config

	// SceneURL is the scene server websocket. Empty uses the simulated world
	// in sim mode and disables the mover otherwise.
	SceneURL string

	// SceneListen serves the simulated world over websocket in sim mode. Empty disables it.
	SceneListen string

	// Port is the dashboard port; 0 disables the dashboard.
	Port int

	// Target detection.
	Color     string
	MinPixels int

	Tracking tracking.Config
	Mover    scene.MoverConfig

	// MoveTarget runs the scene mover; ExitWhenDone stops the app after it.
	MoveTarget   bool
	ExitWhenDone bool

	HistorySize int

	LogLevel      string
	Debug         bool
	DebugTracking bool
}

// DefaultConfig returns sensible defaults for the gaze application.
func DefaultConfig() Config {
	return Config{
		HeadAddr:     DefaultHeadAddr,
		Camera:       DefaultCamera,
		CameraConfig: camera.DefaultConfig(),
		SceneListen:  DefaultSceneListen,
		Port:         config.DefaultWebPort,
		Color:        detection.Red.String(),
		MinPixels:    detection.DefaultConfig().MinPixels,
		Tracking:     tracking.DefaultConfig(),
		Mover:        scene.DefaultMoverConfig(),
		MoveTarget:   true,
		HistorySize:  0,
		LogLevel:     "info",
	}
}

// LoadEnvConfig applies GAZE_* environment overrides.
// Call this after flag parsing.
func (c *Config) LoadEnvConfig() {
	c.HeadAddr = config.HeadAddr(c.HeadAddr)
	c.Camera = config.Camera(c.Camera)
	c.SceneURL = config.SceneURL(c.SceneURL)
	c.Port = config.Port(c.Port)
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if !c.Sim && c.HeadAddr == "" {
		errs = append(errs, &ConfigError{Field: "HeadAddr", Message: "head address is required without --sim"})
	}
	if !c.Sim && c.Camera == "" {
		errs = append(errs, &ConfigError{Field: "Camera", Message: "camera is required without --sim"})
	}
	if _, err := detection.ParseColor(c.Color); err != nil {
		errs = append(errs, &ConfigError{Field: "Color", Message: err.Error()})
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "Port", Message: fmt.Sprintf("port %d out of range", c.Port)})
	}
	if err := c.Tracking.Validate(); err != nil {
		errs = append(errs, &ConfigError{Field: "Tracking", Message: err.Error()})
	}
	if msgs := c.CameraConfig.Validate(); len(msgs) > 0 {
		errs = append(errs, &ConfigError{Field: "CameraConfig", Message: strings.Join(msgs, "; ")})
	}
	if c.MoveTarget && c.Mover.Iterations <= 0 {
		errs = append(errs, &ConfigError{Field: "Mover", Message: "iterations must be positive"})
	}
	return errors.Join(errs...)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
