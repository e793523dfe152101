package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("telemetry: no samples")

var (
	colorX = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	colorY = color.RGBA{R: 40, G: 90, B: 200, A: 255}
)

// series extracts two values per sample against seconds since the first.
type series func(s tracking.Snapshot) (a, b float64)

type panel struct {
	title, ylabel string
	a, b          string
	get           series
}

var panels = []panel{
	{"Pixel error", "px", "x", "y", func(s tracking.Snapshot) (float64, float64) {
		return float64(s.ErrorX), float64(s.ErrorY)
	}},
	{"Eyes", "deg", "yaw", "tilt", func(s tracking.Snapshot) (float64, float64) {
		return s.EyeYaw, s.EyeTilt
	}},
	{"Neck", "deg", "yaw", "pitch", func(s tracking.Snapshot) (float64, float64) {
		return s.NeckYaw, s.NeckPitch
	}},
}

// RenderPNG draws the error, eye and neck histories as three stacked panels.
func RenderPNG(samples []tracking.Snapshot, width, height vg.Length) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrNoData
	}
	if width <= 0 {
		width = 8 * vg.Inch
	}
	if height <= 0 {
		height = 8 * vg.Inch
	}

	t0 := samples[0].Time
	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p := plot.New()
		p.Title.Text = pn.title
		p.Y.Label.Text = pn.ylabel
		if i == len(panels)-1 {
			p.X.Label.Text = "time (s)"
		}
		p.Add(plotter.NewGrid())

		as := make(plotter.XYs, len(samples))
		bs := make(plotter.XYs, len(samples))
		for j, s := range samples {
			x := s.Time.Sub(t0).Seconds()
			a, b := pn.get(s)
			as[j] = plotter.XY{X: x, Y: a}
			bs[j] = plotter.XY{X: x, Y: b}
		}

		la, err := plotter.NewLine(as)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", pn.title, pn.a, err)
		}
		la.Color = colorX
		la.Width = vg.Points(1)

		lb, err := plotter.NewLine(bs)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", pn.title, pn.b, err)
		}
		lb.Color = colorY
		lb.Width = vg.Points(1)

		p.Add(la, lb)
		p.Legend.Add(pn.a, la)
		p.Legend.Add(pn.b, lb)
		p.Legend.Top = true
		p.Legend.Left = false

		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(96))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      2 * vg.Millimeter,
		PadTop:    vg.Millimeter,
		PadBottom: vg.Millimeter,
		PadLeft:   vg.Millimeter,
		PadRight:  vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
