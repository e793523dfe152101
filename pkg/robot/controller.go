package robot

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Encoders is one reading of the four gaze joints (degrees).
type Encoders struct {
	NeckPitch float64
	NeckYaw   float64
	EyeTilt   float64
	EyeYaw    float64
}

// Head is an attached driver viewed through the four gaze capabilities.
// All commands flow through here so a closed head rejects late commands.
type Head struct {
	driver Driver
	pos    PositionController
	vel    VelocityController
	mode   ModeController
	enc    EncoderReader

	mu     sync.RWMutex
	closed bool
}

// Attach obtains every capability from the driver. If any is missing the
// driver is closed and ErrMissingCapability is returned.
func Attach(d Driver) (*Head, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrMissingCapability)
	}

	h := &Head{driver: d}
	var missing []string
	var ok bool
	if h.pos, ok = d.(PositionController); !ok {
		missing = append(missing, "position")
	}
	if h.vel, ok = d.(VelocityController); !ok {
		missing = append(missing, "velocity")
	}
	if h.mode, ok = d.(ModeController); !ok {
		missing = append(missing, "mode")
	}
	if h.enc, ok = d.(EncoderReader); !ok {
		missing = append(missing, "encoder")
	}

	if len(missing) > 0 {
		d.Close()
		return nil, fmt.Errorf("%w: %s", ErrMissingCapability, strings.Join(missing, ", "))
	}
	return h, nil
}

func (h *Head) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// PositionMove commands a joint to an absolute angle.
func (h *Head) PositionMove(j Joint, deg float64) error {
	if h.isClosed() {
		return commandErr("position", j, ErrClosed)
	}
	return commandErr("position", j, h.pos.PositionMove(j, deg))
}

// VelocityMove commands a joint rate.
func (h *Head) VelocityMove(j Joint, degPerSec float64) error {
	if h.isClosed() {
		return commandErr("velocity", j, ErrClosed)
	}
	return commandErr("velocity", j, h.vel.VelocityMove(j, degPerSec))
}

// SetControlMode switches a joint's control discipline.
func (h *Head) SetControlMode(j Joint, m Mode) error {
	if h.isClosed() {
		return commandErr("mode", j, ErrClosed)
	}
	return commandErr("mode", j, h.mode.SetControlMode(j, m))
}

// Encoder reads one joint.
func (h *Head) Encoder(j Joint) (float64, error) {
	if h.isClosed() {
		return 0, commandErr("encoder", j, ErrClosed)
	}
	v, err := h.enc.Encoder(j)
	return v, commandErr("encoder", j, err)
}

// ReadEncoders reads all four joints. The first failing read aborts.
func (h *Head) ReadEncoders() (Encoders, error) {
	var e Encoders
	var err error
	if e.EyeYaw, err = h.Encoder(EyeYaw); err != nil {
		return Encoders{}, err
	}
	if e.EyeTilt, err = h.Encoder(EyeTilt); err != nil {
		return Encoders{}, err
	}
	if e.NeckPitch, err = h.Encoder(NeckPitch); err != nil {
		return Encoders{}, err
	}
	if e.NeckYaw, err = h.Encoder(NeckYaw); err != nil {
		return Encoders{}, err
	}
	return e, nil
}

// StopNeck commands zero velocity on both neck joints. Both joints are
// always attempted; errors are joined.
func (h *Head) StopNeck() error {
	var errs []error
	for _, j := range NeckJoints {
		if err := h.VelocityMove(j, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases the driver. Safe to call more than once.
func (h *Head) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.driver.Close()
}
