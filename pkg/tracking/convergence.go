package tracking

// ConvergenceMonitor decides when a gaze shift has settled.
type ConvergenceMonitor struct {
	ErrorThreshold    float64 // pixels
	PositionThreshold float64 // degrees
}

// NewConvergenceMonitor creates a monitor from config
func NewConvergenceMonitor(config Config) ConvergenceMonitor {
	return ConvergenceMonitor{
		ErrorThreshold:    config.ErrorThreshold,
		PositionThreshold: config.PositionThreshold,
	}
}

// Evaluate reports whether pixel error and eye deflection are both inside
// their thresholds. All comparisons are strict.
func (m ConvergenceMonitor) Evaluate(errX, errY int, encYaw, encTilt float64) bool {
	return abs(float64(errX)) < m.ErrorThreshold &&
		abs(float64(errY)) < m.ErrorThreshold &&
		abs(encYaw) < m.PositionThreshold &&
		abs(encTilt) < m.PositionThreshold
}
