package scene

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
)

// StatusWaiter is the settle flag shared with the tracker.
type StatusWaiter interface {
	Reset()
	Wait(ctx context.Context) error
	WaitPoll(ctx context.Context, interval time.Duration) error
}

// MoverConfig holds the target sequence parameters
type MoverConfig struct {
	Iterations int     // Number of target moves
	Radius     float64 // Sphere radius (m)
	Start      Vec3    // Initial sphere position
	Color      Color

	// Bounds for x and y; z stays at Start.Z
	MinX, MaxX float64
	MinY, MaxY float64
	MinStep    float64 // Each move changes x and y by at least this much

	Pause         time.Duration // Hold after the gaze settles
	PollInterval  time.Duration // >0 polls the status instead of blocking on it
	SettleTimeout time.Duration // 0 waits until ctx ends
	Seed          int64         // 0 seeds from the clock
}

// DefaultMoverConfig returns six moves of a 4 cm red sphere 0.8 m ahead.
func DefaultMoverConfig() MoverConfig {
	return MoverConfig{
		Iterations: 6,
		Radius:     0.04,
		Start:      Vec3{X: 0, Y: 0.9, Z: 0.8},
		Color:      Red,
		MinX:       -0.3,
		MaxX:       0.3,
		MinY:       0.6,
		MaxY:       1.1,
		MinStep:    0.2,
		Pause:      2 * time.Second,
	}
}

// MoverReport summarizes a run.
type MoverReport struct {
	Moves    int           `json:"moves"`
	Settled  int           `json:"settled"`
	Failed   int           `json:"failed"`
	TimedOut int           `json:"timed_out"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Mover steps the target through random positions and waits for the gaze
// to settle after each one.
type Mover struct {
	ctrl   Controller
	status StatusWaiter
	config MoverConfig
	rng    *rand.Rand
	logger *slog.Logger
}

// NewMover creates a mover.
func NewMover(ctrl Controller, status StatusWaiter, config MoverConfig) *Mover {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Mover{
		ctrl:   ctrl,
		status: status,
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		logger: log.With("component", "mover"),
	}
}

// Setup clears the scene and creates the target sphere. Returns its id.
func (m *Mover) Setup(ctx context.Context) (int, error) {
	if err := m.ctrl.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("clear scene: %w", err)
	}
	id, err := m.ctrl.CreateSphere(ctx, SphereSpec{
		Radius: m.config.Radius,
		Pos:    m.config.Start,
		Color:  m.config.Color,
	})
	if err != nil {
		return 0, fmt.Errorf("create sphere: %w", err)
	}
	m.logger.Info("target created", "id", id, "x", m.config.Start.X, "y", m.config.Start.Y)
	return id, nil
}

// Run moves sphere id through the configured number of positions. A failed
// move is logged and skipped. Returns early with ctx's error.
func (m *Mover) Run(ctx context.Context, id int) (report MoverReport, err error) {
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()

	last := m.config.Start
	for i := 0; i < m.config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		next := m.NextPosition(last)
		m.logger.Info("moving target",
			"iteration", i+1, "of", m.config.Iterations,
			"x", next.X, "y", next.Y)

		if err := m.ctrl.MoveSphere(ctx, id, next); err != nil {
			report.Failed++
			m.logger.Error("move failed", "iteration", i+1, "error", err)
			continue
		}
		report.Moves++

		m.status.Reset()

		settled, err := m.waitSettled(ctx)
		if err != nil {
			return report, err
		}
		if settled {
			report.Settled++
			m.logger.Info("gaze settled", "iteration", i+1)
		} else {
			report.TimedOut++
			m.logger.Warn("gaze did not settle", "iteration", i+1, "timeout", m.config.SettleTimeout)
		}

		if err := sleep(ctx, m.config.Pause); err != nil {
			return report, err
		}
		last = next
	}

	return report, nil
}

// waitSettled reports false on SettleTimeout and an error when ctx ends.
func (m *Mover) waitSettled(ctx context.Context) (bool, error) {
	waitCtx := ctx
	if m.config.SettleTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.config.SettleTimeout)
		defer cancel()
	}

	var err error
	if m.config.PollInterval > 0 {
		err = m.status.WaitPoll(waitCtx, m.config.PollInterval)
	} else {
		err = m.status.Wait(waitCtx)
	}

	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return false, nil
	default:
		return false, err
	}
}

// NextPosition picks a position that differs from last by at least MinStep
// on both axes and stays inside the bounds. Each axis jumps MinStep plus up
// to half a step further, away from last in a random direction.
func (m *Mover) NextPosition(last Vec3) Vec3 {
	c := m.config
	jitter := c.MinStep / 2

	for attempt := 0; attempt < 1000; attempt++ {
		rx := -jitter + m.rng.Float64()*2*jitter
		ry := -jitter + m.rng.Float64()*2*jitter

		x := last.X + rx + math.Copysign(c.MinStep, rx)
		y := last.Y + ry + math.Copysign(c.MinStep, ry)

		x = math.Max(c.MinX, math.Min(c.MaxX, x))
		y = math.Max(c.MinY, math.Min(c.MaxY, y))

		if math.Abs(x-last.X) >= c.MinStep && math.Abs(y-last.Y) >= c.MinStep {
			return Vec3{X: x, Y: y, Z: last.Z}
		}
	}

	// Bounds too tight for random jumps: take the farthest corner
	return Vec3{X: farthest(last.X, c.MinX, c.MaxX), Y: farthest(last.Y, c.MinY, c.MaxY), Z: last.Z}
}

func farthest(v, lo, hi float64) float64 {
	if v-lo > hi-v {
		return lo
	}
	return hi
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
