package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os/exec"
	"sync"
	"time"
)

// FastDecoder pipes H264 access units through ffmpeg and keeps the newest
// JPEG. Decodes are rate limited to minInterval.
type FastDecoder struct {
	// Frame buffer
	latestFrame []byte
	frameMu     sync.RWMutex

	// Decode rate limiting
	lastDecode  time.Time
	minInterval time.Duration

	mu     sync.Mutex
	active *exec.Cmd
	closed bool
}

// ffmpegArgs decodes a single H264 frame to JPEG; -q:v 3 is near lossless.
var ffmpegArgs = []string{
	"-f", "h264", "-i", "pipe:0",
	"-vframes", "1",
	"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3",
	"pipe:1",
}

// NewFastDecoder creates a decoder.
// decodeInterval controls how often we decode (e.g., 50ms = 20 FPS max)
func NewFastDecoder(decodeInterval time.Duration) *FastDecoder {
	return &FastDecoder{
		minInterval: decodeInterval,
	}
}

// DecodeNAL decodes H264 NAL units to JPEG.
// Rate limited to avoid overwhelming the decoder.
func (d *FastDecoder) DecodeNAL(nalData []byte) ([]byte, error) {
	if len(nalData) < 100 {
		return nil, nil
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, fmt.Errorf("decoder closed")
	}
	if time.Since(d.lastDecode) < d.minInterval {
		d.mu.Unlock()
		return d.GetLatestFrame(), nil
	}
	d.lastDecode = time.Now()

	// One access unit in on stdin, one MJPEG frame out on stdout.
	cmd := exec.Command("ffmpeg", ffmpegArgs...)
	var stdout bytes.Buffer
	cmd.Stdin = bytes.NewReader(nalData)
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	d.active = cmd
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.active = nil
		d.mu.Unlock()
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			// ffmpeg exits non-zero when the unit holds no complete frame
			return nil, nil
		}
	case <-time.After(100 * time.Millisecond):
		cmd.Process.Kill()
		<-done
		return nil, nil
	}

	jpegData := stdout.Bytes()
	if len(jpegData) > 1000 && !isGrayJPEG(jpegData) {
		d.frameMu.Lock()
		d.latestFrame = jpegData
		d.frameMu.Unlock()
		return jpegData, nil
	}

	return d.GetLatestFrame(), nil
}

// GetLatestFrame returns the most recently decoded frame.
func (d *FastDecoder) GetLatestFrame() []byte {
	d.frameMu.RLock()
	defer d.frameMu.RUnlock()

	if d.latestFrame == nil {
		return nil
	}

	frame := make([]byte, len(d.latestFrame))
	copy(frame, d.latestFrame)
	return frame
}

// Close kills any in-flight decode and rejects further ones.
func (d *FastDecoder) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil && d.active.Process != nil {
		d.active.Process.Kill()
	}
	d.closed = true
}

// isGrayJPEG checks if a JPEG is likely gray/corrupt.
// Broken H264 references decode to flat gray frames.
func isGrayJPEG(jpegData []byte) bool {
	if len(jpegData) < 1000 {
		return true
	}

	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return true
	}

	bounds := img.Bounds()
	if bounds.Dx() < 100 || bounds.Dy() < 100 {
		return true
	}

	// Sample pixels to check variance
	var rSum, gSum, bSum int
	samples := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += bounds.Dy() / 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += bounds.Dx() / 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(b >> 8)
			samples++
		}
	}

	if samples == 0 {
		return true
	}

	avgR := rSum / samples
	avgG := gSum / samples
	avgB := bSum / samples

	// Gray frames have R ≈ G ≈ B with low values
	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}

	// Check for uniform gray (R = G = B)
	colorDiff := abs(avgR-avgG) + abs(avgG-avgB) + abs(avgR-avgB)
	if colorDiff < 15 && avgR > 100 && avgR < 150 {
		return true
	}

	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// RGBToJPEG converts an RGB image to JPEG bytes.
func RGBToJPEG(img *image.RGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
