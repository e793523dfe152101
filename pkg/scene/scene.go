// Package scene controls the target object the head is asked to follow.
package scene

import (
	"context"
	"errors"

	"github.com/teslashibe/go-gaze/pkg/protocol"
)

var (
	// ErrRejected is returned when the scene server refuses a command.
	ErrRejected = errors.New("scene: command rejected")

	// ErrClosed is returned after the connection is closed.
	ErrClosed = errors.New("scene: connection closed")

	// ErrNoSuchObject is returned for moves of an unknown object id.
	ErrNoSuchObject = errors.New("scene: no such object")
)

// Vec3 is a world position in meters: x lateral, y height, z depth.
type Vec3 = protocol.Vec3

// Color is an object color, each channel 0-1.
type Color = protocol.RGB

// Red is the target color the locator looks for.
var Red = Color{R: 1}

// SphereSpec describes a static sphere.
type SphereSpec struct {
	Radius float64
	Pos    Vec3
	Color  Color
}

// Controller manipulates the scene. Object ids are 1-based in creation order.
type Controller interface {
	DeleteAll(ctx context.Context) error
	CreateSphere(ctx context.Context, s SphereSpec) (id int, err error)
	MoveSphere(ctx context.Context, id int, pos Vec3) error
}
