package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/scene"
)

// World is an in-memory scene. Object ids restart at 1 after DeleteAll.
type World struct {
	mu      sync.RWMutex
	spheres map[int]scene.SphereSpec
	nextID  int
}

var _ scene.Controller = (*World)(nil)

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{spheres: make(map[int]scene.SphereSpec)}
}

// DeleteAll implements scene.Controller.
func (w *World) DeleteAll(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spheres = make(map[int]scene.SphereSpec)
	w.nextID = 0
	return nil
}

// CreateSphere implements scene.Controller.
func (w *World) CreateSphere(ctx context.Context, s scene.SphereSpec) (int, error) {
	if s.Radius <= 0 {
		return 0, fmt.Errorf("sim: sphere radius must be positive, got %g", s.Radius)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	w.spheres[w.nextID] = s
	return w.nextID, nil
}

// MoveSphere implements scene.Controller.
func (w *World) MoveSphere(ctx context.Context, id int, pos scene.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.spheres[id]
	if !ok {
		return fmt.Errorf("%w: %d", scene.ErrNoSuchObject, id)
	}
	s.Pos = pos
	w.spheres[id] = s
	return nil
}

// Sphere returns sphere id.
func (w *World) Sphere(id int) (scene.SphereSpec, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.spheres[id]
	return s, ok
}

// Spheres returns all spheres ordered by id.
func (w *World) Spheres() []scene.SphereSpec {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]int, 0, len(w.spheres))
	for id := range w.spheres {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]scene.SphereSpec, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.spheres[id])
	}
	return out
}
