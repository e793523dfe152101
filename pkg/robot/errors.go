package robot

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCapability is returned by Attach when a driver lacks a required interface.
	ErrMissingCapability = errors.New("robot: driver missing required capability")

	// ErrClosed is returned when commanding a closed driver.
	ErrClosed = errors.New("robot: driver closed")

	// ErrUnknownJoint is returned for a joint outside the four gaze channels.
	ErrUnknownJoint = errors.New("robot: unknown joint")
)

// CommandError wraps a failed joint command with its context.
type CommandError struct {
	Op    string // "position", "velocity", "mode", "encoder"
	Joint Joint
	Err   error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("robot: %s %s: %v", e.Op, e.Joint, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

func commandErr(op string, j Joint, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Op: op, Joint: j, Err: err}
}

func validJoint(j Joint) bool {
	switch j {
	case NeckPitch, NeckYaw, EyeTilt, EyeYaw:
		return true
	}
	return false
}
