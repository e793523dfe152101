// Package sim is an in-memory pan-tilt head, scene and camera so the gaze
// loop can run end to end without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/pkg/robot"
)

// ErrWrongMode is returned when a command does not match the joint's control mode.
var ErrWrongMode = errors.New("sim: command does not match control mode")

// HeadConfig holds the joint kinematics.
type HeadConfig struct {
	EyeSlew    float64 // Max eye speed in position mode (deg/s)
	NeckSlew   float64 // Max neck speed in position mode (deg/s)
	MaxNeckVel float64 // Velocity commands are clamped to this (deg/s)

	// Symmetric travel limits (deg)
	EyeYawLimit    float64
	EyeTiltLimit   float64
	NeckYawLimit   float64
	NeckPitchLimit float64

	StepPeriod time.Duration // Physics step used by Run
}

// DefaultHeadConfig returns kinematics close to a small humanoid head.
func DefaultHeadConfig() HeadConfig {
	return HeadConfig{
		EyeSlew:        300,
		NeckSlew:       60,
		MaxNeckVel:     40,
		EyeYawLimit:    35,
		EyeTiltLimit:   30,
		NeckYawLimit:   80,
		NeckPitchLimit: 40,
		StepPeriod:     5 * time.Millisecond,
	}
}

type joint struct {
	mode   robot.Mode
	pos    float64
	target float64
	vel    float64
	limit  float64
	slew   float64
}

// Head implements every robot capability in memory. Joints start in
// position mode at zero. Time only advances through Step or Run.
type Head struct {
	config HeadConfig

	mu       sync.Mutex
	joints   map[robot.Joint]*joint
	commands uint64
	closed   bool
}

var _ robot.Capabilities = (*Head)(nil)

// NewHead creates a simulated head.
func NewHead(config HeadConfig) *Head {
	return &Head{
		config: config,
		joints: map[robot.Joint]*joint{
			robot.NeckPitch: {limit: config.NeckPitchLimit, slew: config.NeckSlew},
			robot.NeckYaw:   {limit: config.NeckYawLimit, slew: config.NeckSlew},
			robot.EyeTilt:   {limit: config.EyeTiltLimit, slew: config.EyeSlew},
			robot.EyeYaw:    {limit: config.EyeYawLimit, slew: config.EyeSlew},
		},
	}
}

func (h *Head) get(op string, j robot.Joint) (*joint, error) {
	if h.closed {
		return nil, &robot.CommandError{Op: op, Joint: j, Err: robot.ErrClosed}
	}
	jt, ok := h.joints[j]
	if !ok {
		return nil, &robot.CommandError{Op: op, Joint: j, Err: robot.ErrUnknownJoint}
	}
	return jt, nil
}

// PositionMove implements robot.PositionController.
func (h *Head) PositionMove(j robot.Joint, deg float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	jt, err := h.get("position", j)
	if err != nil {
		return err
	}
	if jt.mode != robot.ModePosition {
		return &robot.CommandError{Op: "position", Joint: j, Err: ErrWrongMode}
	}
	jt.target = clamp(deg, jt.limit)
	h.commands++
	return nil
}

// VelocityMove implements robot.VelocityController.
func (h *Head) VelocityMove(j robot.Joint, degPerSec float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	jt, err := h.get("velocity", j)
	if err != nil {
		return err
	}
	if jt.mode != robot.ModeVelocity {
		return &robot.CommandError{Op: "velocity", Joint: j, Err: ErrWrongMode}
	}
	jt.vel = clamp(degPerSec, h.config.MaxNeckVel)
	h.commands++
	return nil
}

// SetControlMode implements robot.ModeController. Switching mode holds the
// joint where it is.
func (h *Head) SetControlMode(j robot.Joint, m robot.Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	jt, err := h.get("mode", j)
	if err != nil {
		return err
	}
	if m != robot.ModePosition && m != robot.ModeVelocity {
		return &robot.CommandError{Op: "mode", Joint: j, Err: fmt.Errorf("unsupported mode %s", m)}
	}
	jt.mode = m
	jt.target = jt.pos
	jt.vel = 0
	return nil
}

// Encoder implements robot.EncoderReader.
func (h *Head) Encoder(j robot.Joint) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	jt, err := h.get("encoder", j)
	if err != nil {
		return 0, err
	}
	return jt.pos, nil
}

// Mode returns the control mode of j.
func (h *Head) Mode(j robot.Joint) robot.Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	if jt, ok := h.joints[j]; ok {
		return jt.mode
	}
	return robot.ModePosition
}

// Velocity returns the commanded velocity of j.
func (h *Head) Velocity(j robot.Joint) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if jt, ok := h.joints[j]; ok {
		return jt.vel
	}
	return 0
}

// Commands returns the number of accepted motion commands.
func (h *Head) Commands() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commands
}

// Gaze returns the line of sight in degrees. Positive neck yaw turns the
// head left, so it subtracts from eye yaw; neck pitch adds to eye tilt.
func (h *Head) Gaze() (yaw, tilt float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	yaw = h.joints[robot.EyeYaw].pos - h.joints[robot.NeckYaw].pos
	tilt = h.joints[robot.EyeTilt].pos + h.joints[robot.NeckPitch].pos
	return yaw, tilt
}

// Step advances the kinematics by dt.
func (h *Head) Step(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, jt := range h.joints {
		switch jt.mode {
		case robot.ModePosition:
			maxStep := jt.slew * sec
			d := jt.target - jt.pos
			if math.Abs(d) <= maxStep {
				jt.pos = jt.target
			} else {
				jt.pos += math.Copysign(maxStep, d)
			}
		case robot.ModeVelocity:
			jt.pos = clamp(jt.pos+jt.vel*sec, jt.limit)
		}
	}
}

// Run steps the head in real time until ctx is done or the head is closed.
func (h *Head) Run(ctx context.Context) error {
	period := h.config.StepPeriod
	if period <= 0 {
		period = 5 * time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if h.isClosed() {
				return nil
			}
			h.Step(now.Sub(last))
			last = now
		}
	}
}

func (h *Head) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close stops the head. Later commands fail with robot.ErrClosed.
func (h *Head) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, jt := range h.joints {
		jt.vel = 0
	}
	return nil
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}
