package tracking

import "time"

// TuningParams holds the real-time adjustable tracking parameters.
// These can be modified via the tuning API without restarting.
type TuningParams struct {
	// PID
	Kp          float64 `json:"kp"`
	Ki          float64 `json:"ki"`
	Kd          float64 `json:"kd"`
	MaxIntegral float64 `json:"max_integral"`

	// Head coordination
	HeadGain       float64 `json:"head_gain"`
	CenterDeadband float64 `json:"center_deadband"`

	// Convergence
	ErrorThreshold    float64 `json:"error_threshold"`
	PositionThreshold float64 `json:"position_threshold"`

	// Loop rate
	RateHz float64 `json:"rate_hz"` // Tick frequency (5-200 Hz)
}

// GetTuningParams returns current tuning parameters from the tracker.
func (t *Tracker) GetTuningParams() TuningParams {
	t.mu.Lock()
	defer t.mu.Unlock()

	return TuningParams{
		Kp:                t.pid.Kp,
		Ki:                t.pid.Ki,
		Kd:                t.pid.Kd,
		MaxIntegral:       t.pid.MaxIntegral,
		HeadGain:          t.coord.Gain,
		CenterDeadband:    t.coord.Deadband,
		ErrorThreshold:    t.monitor.ErrorThreshold,
		PositionThreshold: t.monitor.PositionThreshold,
		RateHz:            1.0 / t.config.Period.Seconds(),
	}
}

// SetTuningParams updates tuning parameters at runtime.
// Only non-zero values are applied.
func (t *Tracker) SetTuningParams(params TuningParams) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if params.Kp > 0 {
		t.pid.Kp = params.Kp
	}
	if params.Ki > 0 {
		t.pid.Ki = params.Ki
	}
	if params.Kd > 0 {
		t.pid.Kd = params.Kd
	}
	if params.MaxIntegral > 0 {
		t.pid.MaxIntegral = params.MaxIntegral
		// Keep the anti-windup bound true for the new limit
		t.pid.integral.X = clamp(t.pid.integral.X, -params.MaxIntegral, params.MaxIntegral)
		t.pid.integral.Y = clamp(t.pid.integral.Y, -params.MaxIntegral, params.MaxIntegral)
	}

	if params.HeadGain > 0 {
		t.coord.Gain = params.HeadGain
	}
	if params.CenterDeadband > 0 {
		t.coord.Deadband = params.CenterDeadband
	}

	if params.ErrorThreshold > 0 {
		t.monitor.ErrorThreshold = params.ErrorThreshold
	}
	if params.PositionThreshold > 0 {
		t.monitor.PositionThreshold = params.PositionThreshold
	}

	if params.RateHz > 0 {
		t.setRateHz(params.RateHz)
	}
}

// setRateHz updates the tick rate at runtime. Caller holds mu.
// Valid range: 5-200 Hz (5ms to 200ms period)
func (t *Tracker) setRateHz(hz float64) {
	if hz < 5 {
		hz = 5
	}
	if hz > 200 {
		hz = 200
	}

	period := time.Duration(float64(time.Second) / hz)
	t.config.Period = period

	// Send to the ticker reset channel (non-blocking)
	select {
	case t.periodReset <- period:
	default:
		// Channel full, skip (previous update still pending)
	}
}
