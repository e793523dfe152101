// Package tracking keeps a colored target centered in the camera frame by
// driving the eyes in position mode and offloading onto the neck in
// velocity mode.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/robot"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// FrameSource yields the newest camera frame, or nil when none is ready.
// A frame is handed out once; stale frames are dropped, never queued.
type FrameSource interface {
	Read() *detection.Frame
}

// Locator finds the target centroid in a frame.
type Locator interface {
	Locate(f *detection.Frame) (detection.Centroid, bool)
}

// Head is the actuator surface the tracker drives. *robot.Head implements it.
type Head interface {
	PositionMove(j robot.Joint, deg float64) error
	VelocityMove(j robot.Joint, degPerSec float64) error
	SetControlMode(j robot.Joint, m robot.Mode) error
	ReadEncoders() (robot.Encoders, error)
	StopNeck() error
	Close() error
}

// TickResult says what a single tick did.
type TickResult int

const (
	TickOK TickResult = iota
	TickNoFrame
	TickNoTarget
	TickReadFailed
	TickNotConfigured
)

func (r TickResult) String() string {
	switch r {
	case TickOK:
		return "ok"
	case TickNoFrame:
		return "no_frame"
	case TickNoTarget:
		return "no_target"
	case TickReadFailed:
		return "read_failed"
	case TickNotConfigured:
		return "not_configured"
	default:
		return fmt.Sprintf("tick(%d)", int(r))
	}
}

// Snapshot is the telemetry published after every successful tick.
type Snapshot struct {
	Time         time.Time `json:"time"`
	ErrorX       int       `json:"error_x"`
	ErrorY       int       `json:"error_y"`
	Confidence   int       `json:"confidence"`
	EyeYaw       float64   `json:"eye_yaw"`  // encoder, deg
	EyeTilt      float64   `json:"eye_tilt"` // encoder, deg
	NeckPitch    float64   `json:"neck_pitch"`
	NeckYaw      float64   `json:"neck_yaw"`
	CommandYaw   float64   `json:"command_yaw"`
	CommandTilt  float64   `json:"command_tilt"`
	NeckPitchVel float64   `json:"neck_pitch_vel"`
	NeckYawVel   float64   `json:"neck_yaw_vel"`
	MovementDone bool      `json:"movement_done"`
	Ticks        uint64    `json:"ticks"`
	Skipped      uint64    `json:"skipped"`
	Errors       uint64    `json:"errors"`
}

// Tracker runs the gaze servo loop.
type Tracker struct {
	config    Config
	head      Head
	source    FrameSource
	locator   Locator
	status    *MovementStatus
	sessionID string
	logger    *slog.Logger

	// Control state, guarded by mu (tuning writes gains concurrently)
	mu      sync.Mutex
	pid     *PIDController
	coord   HeadCoordinator
	monitor ConvergenceMonitor

	// Telemetry
	snapMu sync.RWMutex
	snap   Snapshot

	// Counters
	tickCount    atomic.Uint64
	skippedTicks atomic.Uint64
	errorCount   atomic.Uint64
	lastErrorLog time.Time // tick goroutine only

	// Lifecycle
	configMu    sync.Mutex
	configured  atomic.Bool
	runMu       sync.Mutex
	runDone     chan struct{}
	released    bool
	releaseOnce sync.Once
	releaseErr  error

	periodReset chan time.Duration
}

// New creates a tracker. A nil status gets a fresh MovementStatus.
func New(config Config, head Head, source FrameSource, locator Locator, status *MovementStatus) *Tracker {
	if status == nil {
		status = NewMovementStatus()
	}
	id := uuid.NewString()
	return &Tracker{
		config:      config,
		head:        head,
		source:      source,
		locator:     locator,
		status:      status,
		sessionID:   id,
		logger:      log.With("component", "tracker", "session", id),
		pid:         NewPIDController(config),
		coord:       NewHeadCoordinator(config),
		monitor:     NewConvergenceMonitor(config),
		periodReset: make(chan time.Duration, 1),
	}
}

// SessionID identifies this tracker instance in logs and telemetry.
func (t *Tracker) SessionID() string {
	return t.sessionID
}

// Status returns the shared movement status.
func (t *Tracker) Status() *MovementStatus {
	return t.status
}

// Configure homes all four joints in position mode, waits SettleDelay, then
// switches the neck to velocity mode at zero rate. It succeeds once.
func (t *Tracker) Configure(ctx context.Context) error {
	t.configMu.Lock()
	defer t.configMu.Unlock()

	if t.configured.Load() {
		return ErrAlreadyConfigured
	}
	t.runMu.Lock()
	released := t.released
	t.runMu.Unlock()
	if released {
		return ErrReleased
	}

	for _, j := range robot.Joints {
		if err := t.head.SetControlMode(j, robot.ModePosition); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	for _, j := range robot.Joints {
		if err := t.head.PositionMove(j, 0); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}

	if t.config.SettleDelay > 0 {
		timer := time.NewTimer(t.config.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for _, j := range robot.NeckJoints {
		if err := t.head.SetControlMode(j, robot.ModeVelocity); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
		if err := t.head.VelocityMove(j, 0); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}

	t.configured.Store(true)
	t.logger.Info("head configured",
		"period", t.config.Period,
		"kp", t.config.Kp, "ki", t.config.Ki, "kd", t.config.Kd,
		"head_gain", t.config.HeadGain)
	return nil
}

// Run ticks at the configured period until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if !t.configured.Load() {
		return ErrNotConfigured
	}

	t.runMu.Lock()
	if t.released {
		t.runMu.Unlock()
		return ErrReleased
	}
	if t.runDone != nil {
		t.runMu.Unlock()
		return ErrRunning
	}
	done := make(chan struct{})
	t.runDone = done
	t.runMu.Unlock()

	defer func() {
		t.runMu.Lock()
		t.runDone = nil
		t.runMu.Unlock()
		close(done)
	}()

	t.mu.Lock()
	period := t.config.Period
	t.mu.Unlock()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	t.logger.Info("tracking started", "period", period)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracking stopped",
				"ticks", t.tickCount.Load(),
				"skipped", t.skippedTicks.Load(),
				"errors", t.errorCount.Load())
			return nil

		case d := <-t.periodReset:
			ticker.Reset(d)
			t.logger.Info("tick period changed", "period", d)

		case <-ticker.C:
			t.Tick()
		}
	}
}

// Tick runs one control cycle. It must not be called concurrently with
// itself or with Run.
func (t *Tracker) Tick() TickResult {
	if !t.configured.Load() {
		return TickNotConfigured
	}
	n := t.tickCount.Add(1)
	defer t.heartbeat(n)

	frame := t.source.Read()
	if frame == nil {
		return t.skip(TickNoFrame)
	}

	centroid, ok := t.locator.Locate(frame)
	if !ok {
		return t.skip(TickNoTarget, "pixels", centroid.Confidence)
	}

	cx, cy := frame.Center()
	e := ErrorSignal{X: centroid.X - cx, Y: centroid.Y - cy}

	enc, err := t.head.ReadEncoders()
	if err != nil {
		t.noteError(err)
		return t.skip(TickReadFailed)
	}

	// Work on a copy; nothing above this line touched controller state.
	t.mu.Lock()
	pid := *t.pid
	pose, corr := pid.Update(e, enc.EyeYaw, enc.EyeTilt)
	neck, centered := t.coord.Update(enc.EyeYaw, enc.EyeTilt, pose)
	if centered {
		pid.ResetIntegral()
	}
	settled := t.monitor.Evaluate(e.X, e.Y, enc.EyeYaw, enc.EyeTilt)
	*t.pid = pid
	t.mu.Unlock()

	t.command(robot.EyeYaw, pose.Yaw, t.head.PositionMove)
	t.command(robot.EyeTilt, pose.Tilt, t.head.PositionMove)
	t.command(robot.NeckPitch, neck.PitchVelocity, t.head.VelocityMove)
	t.command(robot.NeckYaw, neck.YawVelocity, t.head.VelocityMove)

	if t.status.Set(settled) && settled {
		t.logger.Debug("gaze settled", "err_x", e.X, "err_y", e.Y)
	}

	debug.TrackLog("tick",
		"err_x", e.X, "err_y", e.Y,
		"corr_x", corr.X, "corr_y", corr.Y,
		"yaw", pose.Yaw, "tilt", pose.Tilt,
		"neck_pitch_vel", neck.PitchVelocity, "neck_yaw_vel", neck.YawVelocity)

	t.publish(Snapshot{
		Time:         time.Now(),
		ErrorX:       e.X,
		ErrorY:       e.Y,
		Confidence:   centroid.Confidence,
		EyeYaw:       enc.EyeYaw,
		EyeTilt:      enc.EyeTilt,
		NeckPitch:    enc.NeckPitch,
		NeckYaw:      enc.NeckYaw,
		CommandYaw:   pose.Yaw,
		CommandTilt:  pose.Tilt,
		NeckPitchVel: neck.PitchVelocity,
		NeckYawVel:   neck.YawVelocity,
		MovementDone: settled,
	})

	return TickOK
}

func (t *Tracker) command(j robot.Joint, v float64, fn func(robot.Joint, float64) error) {
	if err := fn(j, v); err != nil {
		t.noteError(err)
	}
}

func (t *Tracker) skip(r TickResult, args ...any) TickResult {
	t.skippedTicks.Add(1)
	debug.TrackLog("tick skipped", append([]any{"reason", r.String()}, args...)...)
	return r
}

// noteError counts an error and logs at most once per ErrorLogInterval.
func (t *Tracker) noteError(err error) {
	total := t.errorCount.Add(1)
	if t.lastErrorLog.IsZero() || time.Since(t.lastErrorLog) > t.config.ErrorLogInterval {
		t.logger.Warn("head command failed", "error", err, "total_errors", total)
		t.lastErrorLog = time.Now()
	}
}

func (t *Tracker) heartbeat(n uint64) {
	if t.config.HeartbeatEvery <= 0 || n%uint64(t.config.HeartbeatEvery) != 0 {
		return
	}
	s := t.Snapshot()
	t.logger.Info("heartbeat",
		"ticks", n,
		"skipped", t.skippedTicks.Load(),
		"errors", t.errorCount.Load(),
		"err_x", s.ErrorX, "err_y", s.ErrorY,
		"settled", t.status.Done())
}

func (t *Tracker) publish(s Snapshot) {
	t.snapMu.Lock()
	t.snap = s
	t.snapMu.Unlock()
}

// Snapshot returns the latest telemetry with current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.snapMu.RLock()
	s := t.snap
	t.snapMu.RUnlock()

	s.MovementDone = t.status.Done()
	s.Ticks = t.tickCount.Load()
	s.Skipped = t.skippedTicks.Load()
	s.Errors = t.errorCount.Load()
	return s
}

// ErrorX returns the last horizontal pixel error.
func (t *Tracker) ErrorX() int { return t.Snapshot().ErrorX }

// ErrorY returns the last vertical pixel error.
func (t *Tracker) ErrorY() int { return t.Snapshot().ErrorY }

// EyeYaw returns the last eye yaw encoder reading.
func (t *Tracker) EyeYaw() float64 { return t.Snapshot().EyeYaw }

// EyeTilt returns the last eye tilt encoder reading.
func (t *Tracker) EyeTilt() float64 { return t.Snapshot().EyeTilt }

// NeckPitch returns the last neck pitch encoder reading.
func (t *Tracker) NeckPitch() float64 { return t.Snapshot().NeckPitch }

// NeckYaw returns the last neck yaw encoder reading.
func (t *Tracker) NeckYaw() float64 { return t.Snapshot().NeckYaw }

// MovementDone reports whether the gaze has settled.
func (t *Tracker) MovementDone() bool { return t.status.Done() }

// Release waits for Run to return, stops the neck, and closes the head and
// the frame source. Cancel Run's context first. Safe to call more than once.
func (t *Tracker) Release() error {
	t.releaseOnce.Do(func() {
		t.runMu.Lock()
		t.released = true
		done := t.runDone
		t.runMu.Unlock()

		if done != nil {
			<-done
		}

		var errs []error
		if t.configured.Load() {
			if err := t.head.StopNeck(); err != nil {
				errs = append(errs, fmt.Errorf("stop neck: %w", err))
			}
		}
		if err := t.head.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close head: %w", err))
		}
		if c, ok := t.source.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close frame source: %w", err))
			}
		}
		t.releaseErr = errors.Join(errs...)
		t.logger.Info("tracker released")
	})
	return t.releaseErr
}
