// Package robot provides the actuator capability interfaces and drivers for a pan-tilt head.
//
// This package follows the Interface Segregation Principle (ISP) by defining
// small, focused interfaces for each control-board capability. A driver
// implements whichever capabilities its transport supports; Attach collects
// the four the gaze loop needs and fails if any is missing.
package robot

import (
	"fmt"
	"io"
)

// Joint identifies a logical head axis. Values match the control-board axis indices.
type Joint int

const (
	NeckPitch Joint = 0
	NeckYaw   Joint = 2
	EyeTilt   Joint = 3
	EyeYaw    Joint = 4
)

// Joints lists the four channels used by the gaze loop.
var Joints = []Joint{NeckPitch, NeckYaw, EyeTilt, EyeYaw}

// NeckJoints are the joints driven in velocity mode while tracking.
var NeckJoints = []Joint{NeckPitch, NeckYaw}

func (j Joint) String() string {
	switch j {
	case NeckPitch:
		return "neck_pitch"
	case NeckYaw:
		return "neck_yaw"
	case EyeTilt:
		return "eye_tilt"
	case EyeYaw:
		return "eye_yaw"
	default:
		return fmt.Sprintf("joint(%d)", int(j))
	}
}

// Mode is a joint control discipline.
type Mode int

const (
	// ModePosition commands an absolute target angle.
	ModePosition Mode = iota
	// ModeVelocity commands a continuous angular rate.
	ModeVelocity
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeVelocity:
		return "velocity"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// PositionController moves a joint to an absolute angle (degrees).
type PositionController interface {
	PositionMove(j Joint, deg float64) error
}

// VelocityController drives a joint at a constant rate (degrees/second).
type VelocityController interface {
	VelocityMove(j Joint, degPerSec float64) error
}

// ModeController switches the control discipline of a joint.
type ModeController interface {
	SetControlMode(j Joint, m Mode) error
}

// EncoderReader reads the measured angle of a joint (degrees).
type EncoderReader interface {
	Encoder(j Joint) (float64, error)
}

// Driver is an open connection to a control board. Capabilities are
// discovered by type assertion in Attach.
type Driver interface {
	io.Closer
}

// Ensure the bundled drivers expose every capability.
var (
	_ Capabilities = (*HTTPController)(nil)
	_ Capabilities = (*SerialController)(nil)
)

// Capabilities is the composite of all four joint capabilities.
type Capabilities interface {
	PositionController
	VelocityController
	ModeController
	EncoderReader
}
