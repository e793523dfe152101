package tracking

// NeckCommand is a neck velocity command in deg/s.
type NeckCommand struct {
	PitchVelocity float64
	YawVelocity   float64
}

// HeadCoordinator offloads eye deflection onto the neck so the eyes
// drift back toward center while the target stays fixated.
type HeadCoordinator struct {
	Gain     float64 // Neck velocity per degree of commanded eye pose
	Deadband float64 // Eye encoders within ±Deadband count as centered
}

// NewHeadCoordinator creates a coordinator from config
func NewHeadCoordinator(config Config) HeadCoordinator {
	return HeadCoordinator{
		Gain:     config.HeadGain,
		Deadband: config.CenterDeadband,
	}
}

// Update returns the neck command for this tick. When either eye encoder
// is outside the deadband the neck follows the commanded pose; otherwise
// the neck stops and centered is true.
func (h HeadCoordinator) Update(encYaw, encTilt float64, pose Pose) (cmd NeckCommand, centered bool) {
	if abs(encYaw) > h.Deadband || abs(encTilt) > h.Deadband {
		return NeckCommand{
			PitchVelocity: pose.Tilt * h.Gain,
			YawVelocity:   -pose.Yaw * h.Gain,
		}, false
	}
	return NeckCommand{}, true
}
