// Package detection locates a colored target in camera frames.
package detection

import (
	"fmt"
	"strings"
)

// Color names the dominant channel of the target signature.
type Color int

const (
	Red Color = iota
	Green
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("color(%d)", int(c))
	}
}

// ParseColor parses "red", "green" or "blue".
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	}
	return Red, fmt.Errorf("unknown target color %q", s)
}

// Centroid is the mean position of matching pixels.
type Centroid struct {
	X, Y       int // pixel coordinates (truncated mean)
	Confidence int // number of matching pixels
}

// Config holds locator configuration
type Config struct {
	Target    Color   // Dominant channel of the target
	Ratio     float64 // Dominant channel must exceed Ratio × each other channel
	MinPixels int     // Fewer matches than this is reported as not found
}

// DefaultConfig returns the red-sphere signature: r > 2g && r > 2b, 50 pixel floor.
func DefaultConfig() Config {
	return Config{
		Target:    Red,
		Ratio:     2.0,
		MinPixels: 50,
	}
}

// ColorLocator finds the centroid of pixels matching a color signature.
// It holds no per-frame state and is safe for concurrent use.
type ColorLocator struct {
	config Config
}

// NewColorLocator creates a locator. Non-positive values fall back to defaults.
func NewColorLocator(cfg Config) *ColorLocator {
	def := DefaultConfig()
	if cfg.Ratio <= 0 {
		cfg.Ratio = def.Ratio
	}
	if cfg.MinPixels <= 0 {
		cfg.MinPixels = def.MinPixels
	}
	return &ColorLocator{config: cfg}
}

// Config returns the active configuration.
func (l *ColorLocator) Config() Config {
	return l.config
}

// Matches reports whether a pixel carries the target signature.
func (l *ColorLocator) Matches(r, g, b uint8) bool {
	dom, o1, o2 := float64(r), float64(g), float64(b)
	switch l.config.Target {
	case Green:
		dom, o1, o2 = float64(g), float64(r), float64(b)
	case Blue:
		dom, o1, o2 = float64(b), float64(r), float64(g)
	}
	return dom > l.config.Ratio*o1 && dom > l.config.Ratio*o2
}

// Locate scans every pixel and returns the centroid of the matches.
// ok is false when the frame is nil, its buffer does not hold
// Width*Height RGB pixels, or fewer than MinPixels pixels match.
func (l *ColorLocator) Locate(f *Frame) (c Centroid, ok bool) {
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) != f.Width*f.Height*3 {
		return Centroid{}, false
	}

	sumX, sumY, n := 0, 0, 0
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*f.Width*3 : (y+1)*f.Width*3]
		for x := 0; x < f.Width; x++ {
			i := x * 3
			if l.Matches(row[i], row[i+1], row[i+2]) {
				sumX += x
				sumY += y
				n++
			}
		}
	}

	if n < l.config.MinPixels {
		return Centroid{Confidence: n}, false
	}

	return Centroid{X: sumX / n, Y: sumY / n, Confidence: n}, true
}
