package gaze

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-gaze/internal/config"
)

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv(config.EnvHeadAddr, "serial:/dev/ttyACM0")
	t.Setenv(config.EnvCamera, "webrtc://10.0.0.5")
	t.Setenv(config.EnvSceneURL, "ws://sim:9000")
	t.Setenv(config.EnvPort, "9090")

	cfg := DefaultConfig()
	cfg.LoadEnvConfig()

	if cfg.HeadAddr != "serial:/dev/ttyACM0" || cfg.Camera != "webrtc://10.0.0.5" ||
		cfg.SceneURL != "ws://sim:9000" || cfg.Port != 9090 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"sim without head", func(c *Config) { c.Sim, c.HeadAddr, c.Camera = true, "", "" }, ""},
		{"missing head", func(c *Config) { c.HeadAddr = "" }, "HeadAddr"},
		{"bad color", func(c *Config) { c.Color = "purple" }, "Color"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "Port"},
		{"bad gains", func(c *Config) { c.Tracking.Kp = -1 }, "Tracking"},
		{"bad camera", func(c *Config) { c.CameraConfig.Width = 10 }, "CameraConfig"},
		{"no moves", func(c *Config) { c.Mover.Iterations = 0 }, "Mover"},
		{"no moves without mover", func(c *Config) { c.Mover.Iterations, c.MoveTarget = 0, false }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Errorf("error = %v, want field %s", err, tt.field)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Color = "purple"
	if _, err := New(cfg); err == nil {
		t.Error("New accepted an invalid config")
	}
}
