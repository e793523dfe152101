package tracking

// ErrorSignal is the target centroid minus the frame center, in pixels.
type ErrorSignal struct {
	X, Y int
}

// IntegralState is the accumulated pixel error per axis.
type IntegralState struct {
	X, Y float64
}

// Pose is a commanded eye pose in degrees.
type Pose struct {
	Yaw  float64
	Tilt float64
}

// Correction is the PID output in degrees per axis.
type Correction struct {
	X, Y float64
}

// PIDController turns pixel error into eye corrections.
// The derivative term uses (lastErr - err).
type PIDController struct {
	// Gains
	Kp float64
	Ki float64
	Kd float64

	// Anti-windup
	MaxIntegral float64

	// State
	integral IntegralState
	lastErr  ErrorSignal
}

// NewPIDController creates a controller with zeroed state
func NewPIDController(config Config) *PIDController {
	return &PIDController{
		Kp:          config.Kp,
		Ki:          config.Ki,
		Kd:          config.Kd,
		MaxIntegral: config.MaxIntegral,
	}
}

// Update runs one control step. The pose is built from the fresh encoder
// readings, never from the previously commanded pose. Image y grows
// downward, so tilt subtracts the Y correction.
func (c *PIDController) Update(err ErrorSignal, encYaw, encTilt float64) (Pose, Correction) {
	c.integral.X = clamp(c.integral.X+float64(err.X), -c.MaxIntegral, c.MaxIntegral)
	c.integral.Y = clamp(c.integral.Y+float64(err.Y), -c.MaxIntegral, c.MaxIntegral)

	corr := Correction{
		X: float64(err.X)*c.Kp + c.integral.X*c.Ki + float64(c.lastErr.X-err.X)*c.Kd,
		Y: float64(err.Y)*c.Kp + c.integral.Y*c.Ki + float64(c.lastErr.Y-err.Y)*c.Kd,
	}

	c.lastErr = err

	return Pose{
		Yaw:  encYaw + corr.X,
		Tilt: encTilt - corr.Y,
	}, corr
}

// ResetIntegral zeroes both integral terms.
func (c *PIDController) ResetIntegral() {
	c.integral = IntegralState{}
}

// Reset clears all controller state.
func (c *PIDController) Reset() {
	c.integral = IntegralState{}
	c.lastErr = ErrorSignal{}
}

// Integral returns the accumulated error.
func (c *PIDController) Integral() IntegralState {
	return c.integral
}

// LastError returns the error stored by the last Update.
func (c *PIDController) LastError() ErrorSignal {
	return c.lastErr
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
