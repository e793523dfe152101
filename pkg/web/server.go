// Package web provides the real-time gaze dashboard: JSON status and
// history, runtime tuning, a history plot and a live telemetry websocket.
package web

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/telemetry"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
	"github.com/teslashibe/go-gaze/pkg/video"
)

// DefaultFrameInterval is the /ws/frames cadence.
const DefaultFrameInterval = 200 * time.Millisecond

const frameQuality = 80

//go:embed index.html
var indexHTML []byte

// Tracker is the tracker surface the dashboard reads and tunes.
type Tracker interface {
	Snapshot() tracking.Snapshot
	SessionID() string
	MovementDone() bool
	GetTuningParams() tracking.TuningParams
	SetTuningParams(params tracking.TuningParams)
}

// FramePeeker exposes the last captured frame without consuming it.
type FramePeeker interface {
	Peek() *detection.Frame
}

// CameraControl reads and updates capture settings. *camera.Manager implements it.
type CameraControl interface {
	GetConfigJSON() map[string]interface{}
	UpdateConfig(params map[string]interface{}) error
}

// Deps are the components the dashboard serves. Frames and Camera may be nil.
type Deps struct {
	Tracker Tracker
	History *telemetry.History
	Hub     *hub.Hub
	Frames  FramePeeker
	Camera  CameraControl
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	deps   Deps
	frames *hub.Hub // JPEG stream, nil without a frame source
	logger *slog.Logger
}

// NewServer creates a new web dashboard server. A nil Hub gets a fresh one
// the caller must run.
func NewServer(port string, deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = hub.New("telemetry")
	}
	if deps.History == nil {
		deps.History = telemetry.NewHistory(0)
	}
	s := &Server{
		port:   port,
		deps:   deps,
		logger: log.With("component", "web"),
	}
	if deps.Frames != nil {
		s.frames = hub.New("frames")
	}

	app := fiber.New(fiber.Config{
		AppName:               "Gaze Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.Send(indexHTML)
	})

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/history", s.handleHistory)
	api.Get("/tuning", s.handleGetTuning)
	api.Post("/tuning", s.handleSetTuning)
	api.Get("/plot.png", s.handlePlot)
	api.Get("/frame.jpg", s.handleFrame)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/telemetry", websocket.New(s.handleTelemetryWS))
	app.Get("/ws/frames", websocket.New(s.handleFramesWS))

	s.app = app
	return s
}

// App returns the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the telemetry hub.
func (s *Server) Hub() *hub.Hub { return s.deps.Hub }

// FrameHub returns the JPEG frame hub, nil without a frame source.
func (s *Server) FrameHub() *hub.Hub { return s.frames }

// Start serves until ctx is done, then shuts down. Frames are streamed
// on /ws/frames while it runs.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("web dashboard", "url", "http://localhost:"+s.port)
	if s.frames != nil {
		go s.StreamFrames(ctx, DefaultFrameInterval)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(":" + s.port) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// StreamFrames runs the frame hub and broadcasts the latest frame as JPEG
// every interval while anyone is watching. Returns when ctx is done.
func (s *Server) StreamFrames(ctx context.Context, interval time.Duration) {
	if s.frames == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	go s.frames.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *detection.Frame
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.frames.ClientCount() == 0 {
			continue
		}
		f := s.deps.Frames.Peek()
		if f == nil || f == last {
			continue
		}
		last = f
		data, err := video.RGBToJPEG(f.Image(), frameQuality)
		if err != nil {
			s.logger.Warn("frame encode failed", "error", err)
			continue
		}
		s.frames.BroadcastBinary(data)
	}
}
