package tracking

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all tunable parameters for gaze tracking
type Config struct {
	// Timing
	Period      time.Duration // Control tick period
	SettleDelay time.Duration // Wait after homing before switching the neck to velocity mode

	// PID controller (pixel error -> degrees)
	Kp          float64 // Proportional gain
	Ki          float64 // Integral gain
	Kd          float64 // Derivative gain, applied to (lastErr - err)
	MaxIntegral float64 // Anti-windup clamp per axis

	// Head coordination
	HeadGain       float64 // Neck velocity per degree of eye deflection
	CenterDeadband float64 // Eyes within ±this (deg) count as centered

	// Convergence
	ErrorThreshold    float64 // Pixel error below this on both axes
	PositionThreshold float64 // Eye encoders below this (deg) on both axes

	// Logging
	HeartbeatEvery   int           // Heartbeat log every N ticks (0 disables)
	ErrorLogInterval time.Duration // Minimum spacing between command error logs
}

// DefaultConfig returns the reference tuning: 50 Hz, Kp=0.2 Ki=0.01 Kd=0.05
func DefaultConfig() Config {
	return Config{
		Period:      20 * time.Millisecond, // 50 Hz
		SettleDelay: 2 * time.Second,

		Kp:          0.2,
		Ki:          0.01,
		Kd:          0.05,
		MaxIntegral: 10.0,

		HeadGain:       1.2,
		CenterDeadband: 0.1,

		ErrorThreshold:    1.0,
		PositionThreshold: 0.2,

		HeartbeatEvery:   250, // ~5s at 50 Hz
		ErrorLogInterval: 5 * time.Second,
	}
}

// SlowConfig returns a configuration for slower, smoother tracking
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.Kp = 0.1
	cfg.Ki = 0.005
	cfg.Kd = 0.08 // More dampening
	cfg.HeadGain = 0.8
	return cfg
}

// AggressiveConfig returns a configuration for very fast tracking
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Kp = 0.3
	cfg.Ki = 0.02
	cfg.Kd = 0.03 // Less dampening
	cfg.HeadGain = 1.6
	return cfg
}

// Validate reports every out-of-range field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Period > 0, "period must be positive, got %v", c.Period)
	check(c.SettleDelay >= 0, "settle delay must not be negative, got %v", c.SettleDelay)
	check(c.Kp >= 0, "kp must not be negative, got %v", c.Kp)
	check(c.Ki >= 0, "ki must not be negative, got %v", c.Ki)
	check(c.Kd >= 0, "kd must not be negative, got %v", c.Kd)
	check(c.MaxIntegral > 0, "max integral must be positive, got %v", c.MaxIntegral)
	check(c.HeadGain >= 0, "head gain must not be negative, got %v", c.HeadGain)
	check(c.CenterDeadband >= 0, "center deadband must not be negative, got %v", c.CenterDeadband)
	check(c.ErrorThreshold > 0, "error threshold must be positive, got %v", c.ErrorThreshold)
	check(c.PositionThreshold > 0, "position threshold must be positive, got %v", c.PositionThreshold)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}
