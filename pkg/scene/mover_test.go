package scene

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memScene is an in-memory Controller.
type memScene struct {
	mu      sync.Mutex
	spheres map[int]SphereSpec
	nextID  int
	moves   []Vec3
	failOn  map[int]bool // 1-based move index -> fail
	deletes int
}

func newMemScene() *memScene {
	return &memScene{spheres: make(map[int]SphereSpec), failOn: make(map[int]bool)}
}

func (s *memScene) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spheres = make(map[int]SphereSpec)
	s.nextID = 0
	s.deletes++
	return nil
}

func (s *memScene) CreateSphere(ctx context.Context, sphere SphereSpec) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.spheres[s.nextID] = sphere
	return s.nextID, nil
}

func (s *memScene) MoveSphere(ctx context.Context, id int, pos Vec3) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.moves) + 1
	s.moves = append(s.moves, pos)
	if s.failOn[n] {
		return errors.New("simulator busy")
	}
	sp, ok := s.spheres[id]
	if !ok {
		return ErrNoSuchObject
	}
	sp.Pos = pos
	s.spheres[id] = sp
	return nil
}

// fakeStatus settles immediately unless block is set.
type fakeStatus struct {
	mu     sync.Mutex
	resets int
	waits  int
	polls  int
	block  bool
}

func (f *fakeStatus) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeStatus) Wait(ctx context.Context) error {
	f.mu.Lock()
	f.waits++
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeStatus) WaitPoll(ctx context.Context, _ time.Duration) error {
	f.mu.Lock()
	f.polls++
	f.mu.Unlock()
	return nil
}

func testMoverConfig() MoverConfig {
	cfg := DefaultMoverConfig()
	cfg.Pause = 0
	cfg.Seed = 42
	return cfg
}

func TestMover_NextPositionRespectsBoundsAndStep(t *testing.T) {
	cfg := testMoverConfig()

	for seed := int64(1); seed <= 20; seed++ {
		cfg.Seed = seed
		m := NewMover(newMemScene(), &fakeStatus{}, cfg)

		last := cfg.Start
		for i := 0; i < 50; i++ {
			next := m.NextPosition(last)

			require.GreaterOrEqual(t, next.X, cfg.MinX)
			require.LessOrEqual(t, next.X, cfg.MaxX)
			require.GreaterOrEqual(t, next.Y, cfg.MinY)
			require.LessOrEqual(t, next.Y, cfg.MaxY)
			require.GreaterOrEqual(t, math.Abs(next.X-last.X), cfg.MinStep, "seed %d step %d", seed, i)
			require.GreaterOrEqual(t, math.Abs(next.Y-last.Y), cfg.MinStep, "seed %d step %d", seed, i)
			require.Equal(t, cfg.Start.Z, next.Z)

			last = next
		}
	}
}

func TestMover_NextPositionFallsBackToCorner(t *testing.T) {
	cfg := testMoverConfig()
	cfg.MinX, cfg.MaxX = -0.05, 0.05 // narrower than MinStep
	m := NewMover(newMemScene(), &fakeStatus{}, cfg)

	next := m.NextPosition(Vec3{X: 0.01, Y: 0.9, Z: 0.8})
	require.Equal(t, -0.05, next.X)
}

func TestMover_SetupAndRun(t *testing.T) {
	sc := newMemScene()
	st := &fakeStatus{}
	cfg := testMoverConfig()
	m := NewMover(sc, st, cfg)

	ctx := context.Background()
	id, err := m.Setup(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, id)
	require.Equal(t, 1, sc.deletes)
	require.Equal(t, SphereSpec{Radius: 0.04, Pos: Vec3{X: 0, Y: 0.9, Z: 0.8}, Color: Red}, sc.spheres[1])

	report, err := m.Run(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 6, report.Moves)
	require.Equal(t, 6, report.Settled)
	require.Len(t, sc.moves, 6)
	require.Equal(t, 6, st.resets)
	require.Equal(t, 6, st.waits)
	require.Equal(t, sc.moves[5], sc.spheres[1].Pos)
}

func TestMover_FailedMoveIsSkipped(t *testing.T) {
	sc := newMemScene()
	sc.failOn[2] = true
	st := &fakeStatus{}
	m := NewMover(sc, st, testMoverConfig())

	id, err := m.Setup(context.Background())
	require.NoError(t, err)

	report, err := m.Run(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 5, report.Moves)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 5, st.resets, "no reset for a failed move")
}

func TestMover_SettleTimeout(t *testing.T) {
	st := &fakeStatus{block: true}
	cfg := testMoverConfig()
	cfg.Iterations = 2
	cfg.SettleTimeout = 10 * time.Millisecond
	m := NewMover(newMemScene(), st, cfg)
	id, err := m.Setup(context.Background())
	require.NoError(t, err)

	report, err := m.Run(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 2, report.TimedOut)
	require.Equal(t, 0, report.Settled)
}

func TestMover_ContextCancelStopsWaiting(t *testing.T) {
	st := &fakeStatus{block: true}
	sc := newMemScene()
	m := NewMover(sc, st, testMoverConfig())
	id, err := m.Setup(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report, err := m.Run(ctx, id)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, report.Moves)
}

func TestMover_PollMode(t *testing.T) {
	st := &fakeStatus{}
	cfg := testMoverConfig()
	cfg.Iterations = 3
	cfg.PollInterval = 100 * time.Millisecond
	sc := newMemScene()
	m := NewMover(sc, st, cfg)
	id, err := m.Setup(context.Background())
	require.NoError(t, err)

	_, err = m.Run(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 3, st.polls)
	require.Equal(t, 0, st.waits)
}
