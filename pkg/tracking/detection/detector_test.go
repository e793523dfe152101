package detection

import (
	"image"
	"image/color"
	"testing"
)

// paintPixels sets n pixels to the given color in row-major order starting at (x0, y0).
func paintPixels(f *Frame, x0, y0, n int, r, g, b uint8) {
	for i := 0; i < n; i++ {
		x := x0 + i%10
		y := y0 + i/10
		f.Set(x, y, r, g, b)
	}
}

func TestColorLocator_Matches(t *testing.T) {
	tests := []struct {
		name    string
		target  Color
		r, g, b uint8
		want    bool
	}{
		{"pure red", Red, 255, 0, 0, true},
		{"red just above ratio", Red, 201, 100, 100, true},
		{"red exactly twice", Red, 200, 100, 100, false},
		{"orange fails blue test", Red, 200, 120, 10, false},
		{"white", Red, 255, 255, 255, false},
		{"black", Red, 0, 0, 0, false},
		{"pure green", Green, 0, 255, 0, true},
		{"red is not green", Green, 255, 0, 0, false},
		{"pure blue", Blue, 10, 10, 200, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewColorLocator(Config{Target: tc.target})
			if got := l.Matches(tc.r, tc.g, tc.b); got != tc.want {
				t.Errorf("Matches(%d,%d,%d) = %v, want %v", tc.r, tc.g, tc.b, got, tc.want)
			}
		})
	}
}

func TestColorLocator_ConfidenceBoundary(t *testing.T) {
	l := NewColorLocator(DefaultConfig())

	f := NewFrame(320, 240)
	paintPixels(f, 100, 100, 49, 255, 0, 0)
	if c, ok := l.Locate(f); ok {
		t.Errorf("49 pixels should be not found, got %+v", c)
	} else if c.Confidence != 49 {
		t.Errorf("Confidence = %d, want 49", c.Confidence)
	}

	f = NewFrame(320, 240)
	paintPixels(f, 100, 100, 50, 255, 0, 0)
	c, ok := l.Locate(f)
	if !ok {
		t.Fatal("50 pixels should yield a centroid")
	}
	if c.Confidence != 50 {
		t.Errorf("Confidence = %d, want 50", c.Confidence)
	}
}

func TestColorLocator_Centroid(t *testing.T) {
	l := NewColorLocator(DefaultConfig())
	f := NewFrame(320, 240)

	// 10x10 block from (200,50) to (209,59): mean x = 204.5 -> 204, mean y = 54.5 -> 54
	for y := 50; y < 60; y++ {
		for x := 200; x < 210; x++ {
			f.Set(x, y, 250, 20, 20)
		}
	}

	c, ok := l.Locate(f)
	if !ok {
		t.Fatal("expected target")
	}
	if c.X != 204 || c.Y != 54 {
		t.Errorf("centroid = (%d,%d), want (204,54)", c.X, c.Y)
	}
	if c.Confidence != 100 {
		t.Errorf("Confidence = %d, want 100", c.Confidence)
	}
}

func TestColorLocator_IgnoresOtherColors(t *testing.T) {
	l := NewColorLocator(DefaultConfig())
	f := NewFrame(64, 64)
	paintPixels(f, 0, 0, 60, 0, 255, 0)

	if _, ok := l.Locate(f); ok {
		t.Error("green pixels must not match a red target")
	}
}

func TestColorLocator_NilFrame(t *testing.T) {
	l := NewColorLocator(DefaultConfig())
	if _, ok := l.Locate(nil); ok {
		t.Error("nil frame must not yield a centroid")
	}
}

func TestColorLocator_MalformedFrame(t *testing.T) {
	l := NewColorLocator(DefaultConfig())
	full := NewFrame(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			full.Set(x, y, 255, 0, 0)
		}
	}

	tests := []struct {
		name  string
		frame *Frame
	}{
		{"short buffer", &Frame{Width: 10, Height: 10, Pix: full.Pix[:150]}},
		{"long buffer", &Frame{Width: 5, Height: 5, Pix: full.Pix}},
		{"zero size", &Frame{Pix: full.Pix}},
		{"negative width", &Frame{Width: -10, Height: -10, Pix: full.Pix}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := l.Locate(tt.frame); ok {
				t.Error("malformed frame must not yield a centroid")
			}
		})
	}

	if _, ok := l.Locate(full); !ok {
		t.Error("well-formed frame should still be located")
	}
}

func TestNewColorLocator_Defaults(t *testing.T) {
	l := NewColorLocator(Config{Target: Blue})
	cfg := l.Config()
	if cfg.Ratio != 2.0 || cfg.MinPixels != 50 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Target != Blue {
		t.Errorf("Target = %v, want blue", cfg.Target)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"red", Red, false},
		{"GREEN", Green, false},
		{" b ", Blue, false},
		{"purple", Red, true},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestFrameFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.SetRGBA(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	f := FrameFromImage(img)
	if f.Width != 4 || f.Height != 3 {
		t.Fatalf("size = %dx%d, want 4x3", f.Width, f.Height)
	}
	r, g, b := f.At(2, 1)
	if r != 10 || g != 20 || b != 30 {
		t.Errorf("At(2,1) = (%d,%d,%d), want (10,20,30)", r, g, b)
	}

	cx, cy := f.Center()
	if cx != 2 || cy != 1 {
		t.Errorf("Center = (%d,%d), want (2,1)", cx, cy)
	}
}

func TestFrameFromRGB_SizeMismatch(t *testing.T) {
	if f := FrameFromRGB(2, 2, make([]uint8, 5)); f != nil {
		t.Error("expected nil for mismatched buffer")
	}
	if f := FrameFromRGB(2, 2, make([]uint8, 12)); f == nil {
		t.Error("expected frame for matching buffer")
	}
}
