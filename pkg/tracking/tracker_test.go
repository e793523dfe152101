package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/pkg/robot"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

type headCall struct {
	op    string
	joint robot.Joint
	value float64
	mode  robot.Mode
}

// mockHead records every command and serves scripted encoder readings.
type mockHead struct {
	mu      sync.Mutex
	calls   []headCall
	enc     robot.Encoders
	readErr error
	moveErr error
	stops   int
	closes  int
}

func (m *mockHead) PositionMove(j robot.Joint, deg float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, headCall{op: "position", joint: j, value: deg})
	return m.moveErr
}

func (m *mockHead) VelocityMove(j robot.Joint, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, headCall{op: "velocity", joint: j, value: v})
	return m.moveErr
}

func (m *mockHead) SetControlMode(j robot.Joint, mode robot.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, headCall{op: "mode", joint: j, mode: mode})
	return nil
}

func (m *mockHead) ReadEncoders() (robot.Encoders, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enc, m.readErr
}

func (m *mockHead) StopNeck() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.calls = append(m.calls, headCall{op: "stop"})
	return nil
}

func (m *mockHead) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.calls = append(m.calls, headCall{op: "close"})
	return nil
}

func (m *mockHead) setEncoders(e robot.Encoders) {
	m.mu.Lock()
	m.enc = e
	m.mu.Unlock()
}

func (m *mockHead) take() []headCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.calls
	m.calls = nil
	return c
}

func (m *mockHead) last(op string, j robot.Joint) (headCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].op == op && m.calls[i].joint == j {
			return m.calls[i], true
		}
	}
	return headCall{}, false
}

// mockSource returns a 320x240 frame unless empty is set.
type mockSource struct {
	mu     sync.Mutex
	empty  bool
	closed bool
}

func (s *mockSource) Read() *detection.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.empty {
		return nil
	}
	return detection.NewFrame(320, 240)
}

func (s *mockSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// mockLocator reports a fixed centroid.
type mockLocator struct {
	mu    sync.Mutex
	c     detection.Centroid
	found bool
}

func (l *mockLocator) Locate(*detection.Frame) (detection.Centroid, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c, l.found
}

// at places the target at an offset from the 320x240 center.
func (l *mockLocator) at(dx, dy int) {
	l.mu.Lock()
	l.c = detection.Centroid{X: 160 + dx, Y: 120 + dy, Confidence: 200}
	l.found = true
	l.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SettleDelay = 0
	cfg.Period = time.Millisecond
	return cfg
}

func newTestTracker(t *testing.T) (*Tracker, *mockHead, *mockSource, *mockLocator) {
	t.Helper()
	head := &mockHead{}
	src := &mockSource{}
	loc := &mockLocator{}
	tr := New(testConfig(), head, src, loc, nil)
	return tr, head, src, loc
}

func configure(t *testing.T, tr *Tracker, head *mockHead) {
	t.Helper()
	if err := tr.Configure(context.Background()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	head.take()
}

func TestTracker_ConfigureSequence(t *testing.T) {
	tr, head, _, _ := newTestTracker(t)

	if err := tr.Configure(context.Background()); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	calls := head.take()
	want := []headCall{
		{op: "mode", joint: robot.NeckPitch, mode: robot.ModePosition},
		{op: "mode", joint: robot.NeckYaw, mode: robot.ModePosition},
		{op: "mode", joint: robot.EyeTilt, mode: robot.ModePosition},
		{op: "mode", joint: robot.EyeYaw, mode: robot.ModePosition},
		{op: "position", joint: robot.NeckPitch},
		{op: "position", joint: robot.NeckYaw},
		{op: "position", joint: robot.EyeTilt},
		{op: "position", joint: robot.EyeYaw},
		{op: "mode", joint: robot.NeckPitch, mode: robot.ModeVelocity},
		{op: "velocity", joint: robot.NeckPitch},
		{op: "mode", joint: robot.NeckYaw, mode: robot.ModeVelocity},
		{op: "velocity", joint: robot.NeckYaw},
	}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %+v", len(calls), len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, calls[i], want[i])
		}
	}

	if err := tr.Configure(context.Background()); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("second Configure = %v, want ErrAlreadyConfigured", err)
	}
}

func TestTracker_ConfigureCanceledDuringSettle(t *testing.T) {
	head := &mockHead{}
	cfg := testConfig()
	cfg.SettleDelay = time.Hour
	tr := New(cfg, head, &mockSource{}, &mockLocator{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tr.Configure(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Configure = %v, want context.Canceled", err)
	}
	for _, c := range head.take() {
		if c.mode == robot.ModeVelocity || c.op == "velocity" {
			t.Errorf("neck switched to velocity despite cancel: %+v", c)
		}
	}
	if err := tr.Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Run = %v, want ErrNotConfigured", err)
	}
}

func TestTracker_TickBeforeConfigure(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	loc.at(10, 0)

	if r := tr.Tick(); r != TickNotConfigured {
		t.Errorf("Tick = %v, want not_configured", r)
	}
	if calls := head.take(); len(calls) != 0 {
		t.Errorf("unexpected commands: %+v", calls)
	}
}

func TestTracker_TickCommandsEyesFromEncoders(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	loc.at(10, 0)
	head.setEncoders(robot.Encoders{EyeYaw: 0.05, EyeTilt: 0.05})

	if r := tr.Tick(); r != TickOK {
		t.Fatalf("Tick = %v, want ok", r)
	}

	// 10*0.2 + 10*0.01 + (0-10)*0.05 = 1.6 on top of the yaw encoder
	yaw, ok := head.last("position", robot.EyeYaw)
	if !ok || !approx(yaw.value, 0.05+1.6) {
		t.Errorf("eye yaw command = %+v, want %v", yaw, 0.05+1.6)
	}
	tilt, ok := head.last("position", robot.EyeTilt)
	if !ok || !approx(tilt.value, 0.05) {
		t.Errorf("eye tilt command = %+v, want 0.05", tilt)
	}

	// Encoders inside the deadband: neck stopped, integral cleared
	for _, j := range robot.NeckJoints {
		c, ok := head.last("velocity", j)
		if !ok || c.value != 0 {
			t.Errorf("%s velocity = %+v, want 0", j, c)
		}
	}
	tr.mu.Lock()
	in := tr.pid.Integral()
	last := tr.pid.LastError()
	tr.mu.Unlock()
	if in != (IntegralState{}) {
		t.Errorf("integral = %+v, want zero after centered tick", in)
	}
	if last != (ErrorSignal{X: 10}) {
		t.Errorf("last error = %+v, want {10 0}", last)
	}
}

func TestTracker_TickOffloadsToNeck(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	loc.at(0, 0)
	head.setEncoders(robot.Encoders{EyeYaw: 0.2})

	tr.Tick()

	yaw, _ := head.last("position", robot.EyeYaw)
	neckYaw, ok := head.last("velocity", robot.NeckYaw)
	if !ok {
		t.Fatal("no neck yaw command")
	}
	if neckYaw.value == 0 {
		t.Fatal("neck yaw velocity should be nonzero outside the deadband")
	}
	if !approx(neckYaw.value, -yaw.value*1.2) {
		t.Errorf("neck yaw velocity = %v, want %v", neckYaw.value, -yaw.value*1.2)
	}
}

func TestTracker_SkippedTicksLeaveStateUntouched(t *testing.T) {
	tr, head, src, loc := newTestTracker(t)
	configure(t, tr, head)

	// One real tick to give the controller some state
	loc.at(7, -3)
	head.setEncoders(robot.Encoders{EyeYaw: 1, EyeTilt: 1})
	tr.Tick()
	head.take()

	tr.mu.Lock()
	before := *tr.pid
	tr.mu.Unlock()
	snapBefore := tr.Snapshot()

	loc.at(50, 50)

	src.mu.Lock()
	src.empty = true
	src.mu.Unlock()
	if r := tr.Tick(); r != TickNoFrame {
		t.Errorf("Tick = %v, want no_frame", r)
	}
	src.mu.Lock()
	src.empty = false
	src.mu.Unlock()

	loc.mu.Lock()
	loc.found = false
	loc.mu.Unlock()
	if r := tr.Tick(); r != TickNoTarget {
		t.Errorf("Tick = %v, want no_target", r)
	}

	loc.at(50, 50)
	head.mu.Lock()
	head.readErr = errors.New("encoder timeout")
	head.mu.Unlock()
	if r := tr.Tick(); r != TickReadFailed {
		t.Errorf("Tick = %v, want read_failed", r)
	}

	if calls := head.take(); len(calls) != 0 {
		t.Errorf("skipped ticks issued commands: %+v", calls)
	}
	tr.mu.Lock()
	after := *tr.pid
	tr.mu.Unlock()
	if after != before {
		t.Errorf("controller state changed: %+v -> %+v", before, after)
	}

	s := tr.Snapshot()
	if s.ErrorX != snapBefore.ErrorX || s.ErrorY != snapBefore.ErrorY {
		t.Errorf("telemetry changed on skipped ticks: %+v", s)
	}
	if s.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", s.Skipped)
	}
	if s.Errors != 1 {
		t.Errorf("Errors = %d, want 1", s.Errors)
	}
}

func TestTracker_ConvergesExactlyOnce(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	offsets := []int{12, 9, 6, 4, 2, 1, 0, 0, 0, 0}
	encoders := []float64{2.0, 1.5, 1.0, 0.6, 0.3, 0.15, 0.1, 0.05, 0.0, 0.0}

	transitions := 0
	prev := tr.MovementDone()
	for i := range offsets {
		loc.at(offsets[i], -offsets[i])
		head.setEncoders(robot.Encoders{EyeYaw: encoders[i], EyeTilt: -encoders[i]})
		tr.Tick()

		cur := tr.MovementDone()
		if cur && !prev {
			transitions++
		}
		if prev && !cur {
			t.Fatalf("tick %d: status fell back to false", i)
		}
		prev = cur
	}

	if transitions != 1 {
		t.Errorf("transitions = %d, want exactly 1", transitions)
	}
	if !tr.Status().Done() {
		t.Error("status should remain true")
	}

	tr.Status().Reset()
	if tr.MovementDone() {
		t.Error("external reset should clear the status")
	}
}

func TestTracker_ConvergesWithNobodyWaiting(t *testing.T) {
	head := &mockHead{}
	loc := &mockLocator{}
	status := NewMovementStatus()
	status.Reset()
	tr := New(testConfig(), head, &mockSource{}, loc, status)
	configure(t, tr, head)

	loc.at(0, 0)
	head.setEncoders(robot.Encoders{})
	if r := tr.Tick(); r != TickOK {
		t.Fatalf("Tick = %v, want ok", r)
	}
	if !status.Done() {
		t.Fatal("centered target with centered eyes should converge")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := status.Wait(ctx); err != nil {
		t.Errorf("Wait after convergence = %v", err)
	}
}

func TestTracker_IdempotentAtCenter(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	loc.at(0, 0)
	head.setEncoders(robot.Encoders{})

	for i := 0; i < 5; i++ {
		tr.Tick()
		for _, j := range robot.NeckJoints {
			if c, _ := head.last("velocity", j); c.value != 0 {
				t.Fatalf("tick %d: %s velocity = %v, want 0", i, j, c.value)
			}
		}
		yaw, _ := head.last("position", robot.EyeYaw)
		if yaw.value != 0 {
			t.Fatalf("tick %d: yaw = %v, want 0", i, yaw.value)
		}
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.pid.LastError() != (ErrorSignal{}) || tr.pid.Integral() != (IntegralState{}) {
		t.Errorf("state drifted: last=%+v integral=%+v", tr.pid.LastError(), tr.pid.Integral())
	}
}

func TestTracker_TelemetryAccessors(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	loc.at(-4, 6)
	head.setEncoders(robot.Encoders{EyeYaw: 0.5, EyeTilt: -0.25, NeckPitch: 3, NeckYaw: -7})
	tr.Tick()

	if tr.ErrorX() != -4 || tr.ErrorY() != 6 {
		t.Errorf("error = (%d,%d), want (-4,6)", tr.ErrorX(), tr.ErrorY())
	}
	if tr.EyeYaw() != 0.5 || tr.EyeTilt() != -0.25 {
		t.Errorf("eyes = (%v,%v)", tr.EyeYaw(), tr.EyeTilt())
	}
	if tr.NeckPitch() != 3 || tr.NeckYaw() != -7 {
		t.Errorf("neck = (%v,%v)", tr.NeckPitch(), tr.NeckYaw())
	}
	if tr.MovementDone() {
		t.Error("should not be settled")
	}
	s := tr.Snapshot()
	if s.Ticks != 1 || s.Confidence != 200 {
		t.Errorf("snapshot = %+v", s)
	}
	if tr.SessionID() == "" {
		t.Error("empty session id")
	}
}

func TestTracker_CommandErrorsAreCounted(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	loc.at(3, 3)
	head.mu.Lock()
	head.moveErr = errors.New("bus busy")
	head.mu.Unlock()

	if r := tr.Tick(); r != TickOK {
		t.Errorf("Tick = %v, want ok despite command errors", r)
	}
	if got := tr.Snapshot().Errors; got != 4 {
		t.Errorf("Errors = %d, want 4 (two eyes, two neck)", got)
	}
}

func TestTracker_RunAndRelease(t *testing.T) {
	tr, head, src, loc := newTestTracker(t)

	if err := tr.Run(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Run before Configure = %v", err)
	}
	configure(t, tr, head)
	loc.at(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- tr.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for tr.Snapshot().Ticks < 3 {
		if time.Now().After(deadline) {
			t.Fatal("tracker did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	if err := tr.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("concurrent Run = %v, want ErrRunning", err)
	}

	cancel()
	if err := tr.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := <-runErr; err != nil {
		t.Errorf("Run returned %v", err)
	}

	calls := head.take()
	if len(calls) < 2 {
		t.Fatalf("expected stop and close, got %+v", calls)
	}
	if calls[len(calls)-2].op != "stop" || calls[len(calls)-1].op != "close" {
		t.Errorf("shutdown order = %+v, want stop then close last", calls[len(calls)-2:])
	}
	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Error("frame source not closed")
	}

	if err := tr.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if head.stops != 1 || head.closes != 1 {
		t.Errorf("stops=%d closes=%d, want 1 each", head.stops, head.closes)
	}
	if err := tr.Run(context.Background()); !errors.Is(err, ErrReleased) {
		t.Errorf("Run after Release = %v, want ErrReleased", err)
	}
}

func TestTracker_ReleaseUnconfiguredSkipsNeckStop(t *testing.T) {
	tr, head, _, _ := newTestTracker(t)

	if err := tr.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if head.stops != 0 || head.closes != 1 {
		t.Errorf("stops=%d closes=%d, want 0 and 1", head.stops, head.closes)
	}
	if err := tr.Configure(context.Background()); !errors.Is(err, ErrReleased) {
		t.Errorf("Configure after Release = %v, want ErrReleased", err)
	}
}

func TestTracker_Tuning(t *testing.T) {
	tr, head, _, loc := newTestTracker(t)
	configure(t, tr, head)

	// Wind the integral up to the default clamp
	head.setEncoders(robot.Encoders{EyeYaw: 1, EyeTilt: 1})
	loc.at(100, 100)
	tr.Tick()

	tr.SetTuningParams(TuningParams{Kp: 0.5, MaxIntegral: 4, HeadGain: 2, RateHz: 1000})

	p := tr.GetTuningParams()
	if p.Kp != 0.5 || p.HeadGain != 2 || p.MaxIntegral != 4 {
		t.Errorf("params = %+v", p)
	}
	if p.Ki != 0.01 || p.Kd != 0.05 {
		t.Errorf("zero fields should be left alone: %+v", p)
	}
	if !approx(p.RateHz, 200) {
		t.Errorf("RateHz = %v, want clamped to 200", p.RateHz)
	}

	tr.mu.Lock()
	in := tr.pid.Integral()
	tr.mu.Unlock()
	if in.X != 4 || in.Y != 4 {
		t.Errorf("integral = %+v, want clamped to new bound 4", in)
	}

	select {
	case d := <-tr.periodReset:
		if d != 5*time.Millisecond {
			t.Errorf("period reset = %v, want 5ms", d)
		}
	default:
		t.Error("expected a pending period reset")
	}
}
