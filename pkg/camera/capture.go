package camera

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
)

// CaptureSource grabs frames from an OpenCV VideoCapture in the background
// and hands out the newest one.
type CaptureSource struct {
	cap    *gocv.VideoCapture
	logger *slog.Logger

	mu  sync.RWMutex
	cfg Config

	slot      Latest
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// OpenCapture opens the configured device and starts grabbing.
func OpenCapture(cfg Config) (*CaptureSource, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	var device interface{} = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture %q: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open capture %q: device not opened", cfg.Device)
	}

	s := &CaptureSource{
		cap:    vc,
		cfg:    cfg,
		logger: log.With("component", "camera", "device", cfg.Device),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.applyProps(cfg)

	go s.grab()

	s.logger.Info("capture opened", "width", cfg.Width, "height", cfg.Height, "fps", cfg.Framerate)
	return s, nil
}

func (s *CaptureSource) applyProps(cfg Config) {
	s.cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	s.cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	s.cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
}

// Apply changes resolution and rate at runtime. The device cannot change.
func (s *CaptureSource) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Device != s.cfg.Device {
		return fmt.Errorf("device change requires restart (%q -> %q)", s.cfg.Device, cfg.Device)
	}
	s.cfg = cfg
	s.applyProps(cfg)
	return nil
}

func (s *CaptureSource) size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Width, s.cfg.Height
}

// grab reads frames until Close. Frames are resized to the configured size
// when the device ignores the requested resolution.
func (s *CaptureSource) grab() {
	defer close(s.done)

	img := gocv.NewMat()
	defer img.Close()
	sized := gocv.NewMat()
	defer sized.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	misses := 0
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if ok := s.cap.Read(&img); !ok || img.Empty() {
			misses++
			if misses == 50 {
				s.logger.Warn("camera returned no frames", "misses", misses)
			}
			time.Sleep(10 * time.Millisecond)
			continue
		}
		misses = 0

		w, h := s.size()
		src := img
		if img.Cols() != w || img.Rows() != h {
			gocv.Resize(img, &sized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
			src = sized
		}
		gocv.CvtColor(src, &rgb, gocv.ColorBGRToRGB)

		if f := detection.FrameFromRGB(rgb.Cols(), rgb.Rows(), rgb.ToBytes()); f != nil {
			s.slot.Put(f)
		}
	}
}

// Read returns the newest unread frame or nil.
func (s *CaptureSource) Read() *detection.Frame {
	return s.slot.Take()
}

// Peek returns the most recent frame for previews.
func (s *CaptureSource) Peek() *detection.Frame {
	return s.slot.Peek()
}

// Close stops grabbing and releases the device.
func (s *CaptureSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.cap.Close()
		puts, dropped := s.slot.Stats()
		s.logger.Info("capture closed", "frames", puts, "dropped", dropped)
	})
	return err
}
