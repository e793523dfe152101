package gaze

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/debug"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/robot"
	"github.com/teslashibe/go-gaze/pkg/scene"
	"github.com/teslashibe/go-gaze/pkg/sim"
	"github.com/teslashibe/go-gaze/pkg/telemetry"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
	"github.com/teslashibe/go-gaze/pkg/video"
	"github.com/teslashibe/go-gaze/pkg/web"
)

// frameSource is what the tracker reads and the dashboard previews.
type frameSource interface {
	tracking.FrameSource
	web.FramePeeker
	io.Closer
}

// App is the gaze application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	logger *slog.Logger

	// Hardware or simulator
	head    *robot.Head
	simHead *sim.Head
	world   *sim.World
	source  frameSource
	camMgr  *camera.Manager

	// Scene
	sceneCtrl   scene.Controller
	sceneClient *scene.Client
	sceneServer *http.Server

	// Control
	status  *tracking.MovementStatus
	tracker *tracking.Tracker

	// Telemetry and dashboard
	hub       *hub.Hub
	history   *telemetry.History
	recorder  *telemetry.Recorder
	webServer *web.Server

	shutdownOnce sync.Once
}

// New creates a gaze application with the given configuration.
func New(cfg Config) (*App, error) {
	// Apply environment overrides
	cfg.LoadEnvConfig()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Tracking = cfg.DebugTracking

	return &App{
		config: cfg,
		logger: log.With("component", "app"),
	}, nil
}

// Init connects the head, opens the frame source and builds the loop.
// Any failure releases what was opened and is returned before a goroutine starts.
func (a *App) Init(ctx context.Context) (err error) {
	a.logger.Info("gaze starting", "sim", a.config.Sim)
	defer func() {
		if err != nil {
			a.Shutdown()
		}
	}()

	if err := a.initHead(); err != nil {
		return fmt.Errorf("head: %w", err)
	}
	if err := a.initCamera(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if err := a.initScene(ctx); err != nil {
		return fmt.Errorf("scene: %w", err)
	}

	color, _ := detection.ParseColor(a.config.Color)
	locator := detection.NewColorLocator(detection.Config{Target: color, MinPixels: a.config.MinPixels})

	a.status = tracking.NewMovementStatus()
	a.tracker = tracking.New(a.config.Tracking, a.head, a.source, locator, a.status)

	a.hub = hub.New("telemetry")
	a.history = telemetry.NewHistory(a.config.HistorySize)
	a.recorder = telemetry.NewRecorder(a.tracker, a.history, a.hub)

	if a.config.Port > 0 {
		deps := web.Deps{
			Tracker: a.tracker,
			History: a.history,
			Hub:     a.hub,
			Frames:  a.source,
		}
		if a.camMgr != nil {
			deps.Camera = a.camMgr
		}
		a.webServer = web.NewServer(strconv.Itoa(a.config.Port), deps)
	}

	a.logger.Info("initialized", "session", a.tracker.SessionID(), "target", color)
	return nil
}

func (a *App) initHead() error {
	var driver robot.Driver
	switch path, isSerial := config.SerialPath(a.config.HeadAddr); {
	case a.config.Sim:
		a.simHead = sim.NewHead(sim.DefaultHeadConfig())
		driver = a.simHead
	case isSerial:
		sc, err := robot.OpenSerial(path, robot.PortOptions{})
		if err != nil {
			return err
		}
		driver = sc
	default:
		hc, err := robot.DialHTTP(config.HeadAPIURL(a.config.HeadAddr))
		if err != nil {
			return err
		}
		driver = hc
	}

	head, err := robot.Attach(driver)
	if err != nil {
		return err
	}
	a.head = head
	return nil
}

func (a *App) initCamera() error {
	cc := a.config.CameraConfig

	switch {
	case a.config.Sim:
		a.world = sim.NewWorld()
		cam := sim.DefaultCameraConfig()
		cam.Width, cam.Height = cc.Width, cc.Height
		a.source = sim.NewCamera(a.simHead, a.world, cam)

	case strings.HasPrefix(a.config.Camera, "webrtc://"):
		host := strings.TrimPrefix(a.config.Camera, "webrtc://")
		client := video.NewClient(video.DefaultConfig(host))
		if err := client.Connect(); err != nil {
			client.Close()
			return err
		}
		if _, err := client.WaitForFrame(10 * time.Second); err != nil {
			a.logger.Warn("no video frame yet", "error", err)
		}
		a.source = camera.NewStreamSource(client, cc)

	default:
		cc.Device = a.config.Camera
		capture, err := camera.OpenCapture(cc)
		if err != nil {
			return err
		}
		a.source = capture
		a.camMgr = camera.NewManager(cc)
		a.camMgr.OnConfigChange = capture.Apply
	}
	return nil
}

func (a *App) initScene(ctx context.Context) error {
	switch {
	case a.config.SceneURL != "":
		client, err := scene.Dial(ctx, a.config.SceneURL)
		if err != nil {
			return err
		}
		a.sceneClient = client
		a.sceneCtrl = client
	case a.world != nil:
		a.sceneCtrl = a.world
		if a.config.SceneListen != "" {
			a.sceneServer = &http.Server{
				Addr:              a.config.SceneListen,
				Handler:           scene.Handler(a.world),
				ReadHeaderTimeout: 5 * time.Second,
			}
		}
	default:
		a.logger.Info("no scene server; target mover disabled")
	}
	return nil
}

// Run configures the head and runs every loop until ctx is cancelled, or
// until the mover finishes when ExitWhenDone is set.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	goRun := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("task stopped", "task", name, "error", err)
			}
		}()
	}

	// The simulated head must be stepping while it homes
	if a.simHead != nil {
		goRun("sim-head", a.simHead.Run)
	}
	if err := a.tracker.Configure(ctx); err != nil {
		cancel()
		return fmt.Errorf("configure: %w", err)
	}

	goRun("hub", func(ctx context.Context) error {
		a.hub.Run(ctx)
		return nil
	})
	goRun("recorder", a.recorder.Run)
	if a.webServer != nil {
		goRun("web", a.webServer.Start)
	}
	if a.sceneServer != nil {
		goRun("scene-server", a.serveScene)
	}

	trackErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := a.tracker.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			cancel()
		}
		trackErr <- err
	}()

	if a.config.MoveTarget && a.sceneCtrl != nil {
		goRun("mover", func(ctx context.Context) error {
			err := a.runMover(ctx)
			if a.config.ExitWhenDone {
				cancel()
			}
			return err
		})
	}

	a.logger.Info("tracking", "session", a.tracker.SessionID())
	<-ctx.Done()

	if err := <-trackErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) runMover(ctx context.Context) error {
	mover := scene.NewMover(a.sceneCtrl, a.status, a.config.Mover)
	id, err := mover.Setup(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	report, err := mover.Run(ctx, id)

	sum := telemetry.Summarize(a.history.Since(start))
	a.logger.Info("mover finished",
		"moves", report.Moves, "settled", report.Settled,
		"failed", report.Failed, "timed_out", report.TimedOut,
		"elapsed", report.Elapsed.Round(time.Millisecond),
		"rms_error_px", sum.RMSError, "done_fraction", sum.DoneFraction)
	return err
}

func (a *App) serveScene(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- a.sceneServer.ListenAndServe() }()
	a.logger.Info("scene server", "addr", a.sceneServer.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.sceneServer.Shutdown(shutdownCtx)
	}
}

// Tracker returns the tracker, nil before Init.
func (a *App) Tracker() *tracking.Tracker { return a.tracker }

// Shutdown stops the head and closes every component. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.tracker != nil {
			// Release stops the neck, then closes the head and the frame source
			if err := a.tracker.Release(); err != nil {
				a.logger.Warn("release", "error", err)
			}
		} else {
			if a.head != nil {
				a.head.Close()
			}
			if a.source != nil {
				a.source.Close()
			}
		}
		if a.sceneClient != nil {
			a.sceneClient.Close()
		}
		if a.webServer != nil {
			a.webServer.Shutdown()
		}
		a.logger.Info("goodbye")
	})
}
