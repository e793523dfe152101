package sim

import (
	"math"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// CameraConfig describes the simulated eye camera.
type CameraConfig struct {
	Width      int
	Height     int
	HFOV       float64 // Horizontal field of view (deg)
	EyeHeight  float64 // Camera height above the floor (m)
	Background [3]uint8
}

// DefaultCameraConfig matches the default capture size.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Width:      320,
		Height:     240,
		HFOV:       60,
		EyeHeight:  0.9,
		Background: [3]uint8{96, 104, 112},
	}
}

// Camera renders the world's spheres as seen along the head's gaze.
// The camera sits at the origin looking down +z when gaze is zero.
type Camera struct {
	config CameraConfig
	head   *Head
	world  *World
	focal  float64 // pixels

	mu   sync.Mutex
	last *detection.Frame
}

// NewCamera creates a camera mounted on head looking into world.
func NewCamera(head *Head, world *World, config CameraConfig) *Camera {
	if config.Width <= 0 || config.Height <= 0 {
		d := DefaultCameraConfig()
		config.Width, config.Height = d.Width, d.Height
	}
	if config.HFOV <= 0 || config.HFOV >= 180 {
		config.HFOV = 60
	}
	return &Camera{
		config: config,
		head:   head,
		world:  world,
		focal:  float64(config.Width) / 2 / math.Tan(config.HFOV/2*math.Pi/180),
	}
}

// Project returns the pixel position and radius of a sphere, and false when
// it is behind the camera.
func (c *Camera) Project(pos [3]float64, radius, gazeYaw, gazeTilt float64) (x, y, r float64, ok bool) {
	px, py, pz := pos[0], pos[1]-c.config.EyeHeight, pos[2]
	if pz <= 0 {
		return 0, 0, 0, false
	}
	az := math.Atan2(px, pz)*180/math.Pi - gazeYaw
	el := math.Atan2(py, math.Hypot(px, pz))*180/math.Pi - gazeTilt
	if math.Abs(az) >= 85 || math.Abs(el) >= 85 {
		return 0, 0, 0, false
	}

	cx, cy := float64(c.config.Width)/2, float64(c.config.Height)/2
	x = cx + c.focal*math.Tan(az*math.Pi/180)
	y = cy - c.focal*math.Tan(el*math.Pi/180)
	r = c.focal * radius / math.Sqrt(px*px+py*py+pz*pz)
	return x, y, r, true
}

// Read renders a frame for the current gaze. It never returns nil.
func (c *Camera) Read() *detection.Frame {
	yaw, tilt := c.head.Gaze()

	w, h := c.config.Width, c.config.Height
	f := detection.NewFrame(w, h)
	bg := c.config.Background
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = bg[0], bg[1], bg[2]
	}

	for _, s := range c.world.Spheres() {
		x, y, r, ok := c.Project([3]float64{s.Pos.X, s.Pos.Y, s.Pos.Z}, s.Radius, yaw, tilt)
		if !ok {
			continue
		}
		cr, cg, cb := channel(s.Color.R), channel(s.Color.G), channel(s.Color.B)

		x0, x1 := max(0, int(math.Floor(x-r))), min(w-1, int(math.Ceil(x+r)))
		y0, y1 := max(0, int(math.Floor(y-r))), min(h-1, int(math.Ceil(y+r)))
		for py := y0; py <= y1; py++ {
			for px := x0; px <= x1; px++ {
				dx, dy := float64(px)+0.5-x, float64(py)+0.5-y
				if dx*dx+dy*dy <= r*r {
					f.Set(px, py, cr, cg, cb)
				}
			}
		}
	}

	c.mu.Lock()
	c.last = f
	c.mu.Unlock()
	return f
}

// Peek returns the last rendered frame without rendering.
func (c *Camera) Peek() *detection.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close implements io.Closer.
func (c *Camera) Close() error { return nil }

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
