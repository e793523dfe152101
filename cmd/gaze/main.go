// gaze - pan-tilt visual servo: keeps a colored target centered in the
// eye camera, offloading sustained eye deflection to the neck.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	app, err := gaze.New(cfg)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	runErr := app.Run(ctx)
	app.Shutdown()
	if runErr != nil {
		log.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() (gaze.Config, error) {
	cfg := gaze.DefaultConfig()

	sim := flag.Bool("sim", false, "Run against the simulated head, world and camera")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	dbg := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every tick, including skipped ones")

	head := flag.String("head", cfg.HeadAddr, "Head controller: host[:port], URL or serial:/dev/ttyX (GAZE_HEAD_ADDR)")
	cam := flag.String("camera", cfg.Camera, "Camera: device index, file/URL or webrtc://host (GAZE_CAMERA)")
	camPreset := flag.String("camera-preset", "default", "Camera preset: default, vga, 720p, lowrate, fast")
	sceneURL := flag.String("scene", "", "Scene server websocket URL (GAZE_SCENE_URL)")
	sceneListen := flag.String("scene-listen", cfg.SceneListen, "Serve the simulated world on this address (sim only, empty to disable)")
	port := flag.Int("port", cfg.Port, "Dashboard port, 0 to disable (GAZE_PORT)")

	color := flag.String("color", cfg.Color, "Target color: red, green, blue")
	minPixels := flag.Int("min-pixels", cfg.MinPixels, "Minimum matching pixels for a detection")
	profile := flag.String("profile", "default", "Tracking gains: default, slow, aggressive")
	rate := flag.Float64("rate", 0, "Control rate in Hz (0 keeps the profile's 50 Hz)")

	iterations := flag.Int("iterations", cfg.Mover.Iterations, "Target moves")
	pause := flag.Duration("pause", cfg.Mover.Pause, "Hold after each settle")
	settleTimeout := flag.Duration("settle-timeout", 0, "Give up waiting for a settle after this long (0 waits forever)")
	noMover := flag.Bool("no-mover", false, "Do not move the target")
	exitWhenDone := flag.Bool("exit-when-done", false, "Exit after the last target move")

	flag.Parse()

	cfg.Sim = *sim
	cfg.LogLevel, cfg.Debug, cfg.DebugTracking = *logLevel, *dbg, *debugTracking
	cfg.HeadAddr, cfg.Camera, cfg.SceneURL, cfg.SceneListen, cfg.Port = *head, *cam, *sceneURL, *sceneListen, *port
	cfg.Color, cfg.MinPixels = *color, *minPixels

	preset := camera.GetPreset(*camPreset)
	if preset == nil {
		return cfg, fmt.Errorf("unknown camera preset %q", *camPreset)
	}
	cfg.CameraConfig = *preset

	switch *profile {
	case "default":
		cfg.Tracking = tracking.DefaultConfig()
	case "slow":
		cfg.Tracking = tracking.SlowConfig()
	case "aggressive":
		cfg.Tracking = tracking.AggressiveConfig()
	default:
		return cfg, fmt.Errorf("unknown profile %q", *profile)
	}
	if *rate > 0 {
		cfg.Tracking.Period = time.Duration(float64(time.Second) / *rate)
	}

	cfg.Mover.Iterations, cfg.Mover.Pause, cfg.Mover.SettleTimeout = *iterations, *pause, *settleTimeout
	cfg.MoveTarget, cfg.ExitWhenDone = !*noMover, *exitWhenDone
	return cfg, nil
}
