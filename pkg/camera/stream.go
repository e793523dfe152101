package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// JPEGSource yields the latest encoded frame, e.g. the WebRTC video client.
type JPEGSource interface {
	CaptureJPEG() ([]byte, error)
}

// StreamSource polls a JPEGSource, decodes new frames to the configured
// size and hands out the newest one.
type StreamSource struct {
	src    JPEGSource
	width  int
	height int
	logger *slog.Logger

	slot      Latest
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewStreamSource starts polling src at cfg.Framerate.
func NewStreamSource(src JPEGSource, cfg Config) *StreamSource {
	if cfg.Framerate <= 0 {
		cfg.Framerate = DefaultConfig().Framerate
	}
	s := &StreamSource{
		src:    src,
		width:  cfg.Width,
		height: cfg.Height,
		logger: log.With("component", "camera", "source", "stream"),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.poll(time.Second / time.Duration(cfg.Framerate))
	return s
}

func (s *StreamSource) poll(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		data, err := s.src.CaptureJPEG()
		if err != nil || len(data) == 0 {
			continue
		}
		// The source repeats its latest frame until a new one decodes
		if bytes.Equal(data, last) {
			continue
		}
		last = data

		f, err := DecodeJPEG(data)
		if err != nil {
			s.logger.Debug("frame decode failed", "error", err)
			continue
		}
		if s.width > 0 && s.height > 0 && (f.Width != s.width || f.Height != s.height) {
			f = Scale(f, s.width, s.height)
		}
		s.slot.Put(f)
	}
}

// Read returns the newest unread frame or nil.
func (s *StreamSource) Read() *detection.Frame {
	return s.slot.Take()
}

// Peek returns the most recent frame for previews.
func (s *StreamSource) Peek() *detection.Frame {
	return s.slot.Peek()
}

// Close stops polling and closes the underlying source if it is a Closer.
func (s *StreamSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		if c, ok := s.src.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

// DecodeJPEG decodes an encoded frame. Baseline JPEG goes through
// image/jpeg; anything it rejects is retried with OpenCV.
func DecodeJPEG(data []byte) (*detection.Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err == nil {
		return detection.FrameFromImage(img), nil
	}

	mat, cvErr := gocv.IMDecode(data, gocv.IMReadColor)
	if cvErr != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	f := detection.FrameFromRGB(rgb.Cols(), rgb.Rows(), rgb.ToBytes())
	if f == nil {
		return nil, fmt.Errorf("decode frame: unexpected mat layout %dx%d", rgb.Cols(), rgb.Rows())
	}
	return f, nil
}

// Scale resizes a frame with nearest-neighbour sampling.
func Scale(f *detection.Frame, width, height int) *detection.Frame {
	out := detection.NewFrame(width, height)
	for y := 0; y < height; y++ {
		sy := y * f.Height / height
		for x := 0; x < width; x++ {
			sx := x * f.Width / width
			r, g, b := f.At(sx, sy)
			out.Set(x, y, r, g, b)
		}
	}
	return out
}
