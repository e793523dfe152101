// locate - camera and target locator check
//
// Opens a frame source, runs the color locator on every frame and prints
// the centroid, its pixel error from center and the frame rate.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/tracking/detection"
	"github.com/teslashibe/go-gaze/pkg/video"
)

type source interface {
	Read() *detection.Frame
	Close() error
}

func main() {
	cameraArg := flag.String("camera", config.Camera("0"), "Camera: device index, file/URL or webrtc://host")
	color := flag.String("color", "red", "Target color: red, green, blue")
	minPixels := flag.Int("min-pixels", 50, "Minimum matching pixels")
	save := flag.String("save", "frame_001.jpg", "Save the first frame here (empty to skip)")
	flag.Parse()

	target, err := detection.ParseColor(*color)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(2)
	}

	fmt.Println("📹 Target locator check")
	fmt.Println("=======================")
	fmt.Printf("Camera: %s   Target: %s\n\n", *cameraArg, target)

	src, err := open(*cameraArg)
	if err != nil {
		fmt.Printf("❌ Failed to open camera: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()
	fmt.Println("✅ Camera open")

	locator := detection.NewColorLocator(detection.Config{Target: target, MinPixels: *minPixels})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	frames, found := 0, 0
	start := time.Now()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	fmt.Println("\n🎬 Locating (Ctrl+C to stop)...")
	for {
		select {
		case <-sigChan:
			elapsed := time.Since(start).Seconds()
			fmt.Printf("\n\n📊 Stats: %d frames in %.1fs (%.1f fps), target in %d\n",
				frames, elapsed, float64(frames)/elapsed, found)
			return
		case <-ticker.C:
		}

		f := src.Read()
		if f == nil {
			continue
		}
		frames++

		if frames == 1 && *save != "" {
			if data, err := video.RGBToJPEG(f.Image(), 85); err == nil {
				os.WriteFile(*save, data, 0644)
				fmt.Printf("✅ Saved first frame (%dx%d) to %s\n", f.Width, f.Height, *save)
			}
		}

		c, ok := locator.Locate(f)
		if !ok {
			fmt.Printf("\r📷 Frame %d: no target (%d px)              ", frames, c.Confidence)
			continue
		}
		found++
		cx, cy := f.Center()
		fmt.Printf("\r📷 Frame %d: target (%d, %d) error (%+d, %+d) %d px   ",
			frames, c.X, c.Y, c.X-cx, c.Y-cy, c.Confidence)
	}
}

func open(src string) (source, error) {
	cfg := camera.DefaultConfig()
	if host, ok := strings.CutPrefix(src, "webrtc://"); ok {
		client := video.NewClient(video.DefaultConfig(host))
		if err := client.Connect(); err != nil {
			client.Close()
			return nil, err
		}
		return camera.NewStreamSource(client, cfg), nil
	}
	cfg.Device = src
	capture, err := camera.OpenCapture(cfg)
	if err != nil {
		return nil, err
	}
	return capture, nil
}
