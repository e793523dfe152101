package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-gaze/pkg/scene"
)

func TestWorld_Lifecycle(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()

	id1, _ := w.CreateSphere(ctx, scene.SphereSpec{Radius: 0.04, Color: scene.Red})
	id2, _ := w.CreateSphere(ctx, scene.SphereSpec{Radius: 0.02})
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", id1, id2)
	}

	pos := scene.Vec3{X: 0.1, Y: 0.8, Z: 0.8}
	if err := w.MoveSphere(ctx, 1, pos); err != nil {
		t.Fatal(err)
	}
	if s, ok := w.Sphere(1); !ok || s.Pos != pos {
		t.Errorf("sphere 1 = %+v, %v", s, ok)
	}
	if got := w.Spheres(); len(got) != 2 || got[0].Radius != 0.04 {
		t.Errorf("Spheres = %+v", got)
	}

	w.DeleteAll(ctx)
	if len(w.Spheres()) != 0 {
		t.Error("DeleteAll left spheres")
	}
	if id, _ := w.CreateSphere(ctx, scene.SphereSpec{Radius: 0.04}); id != 1 {
		t.Errorf("id after DeleteAll = %d, want 1", id)
	}
}

func TestWorld_Errors(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()

	if err := w.MoveSphere(ctx, 3, scene.Vec3{}); !errors.Is(err, scene.ErrNoSuchObject) {
		t.Errorf("move unknown: %v", err)
	}
	if _, err := w.CreateSphere(ctx, scene.SphereSpec{}); err == nil {
		t.Error("zero radius accepted")
	}
}
