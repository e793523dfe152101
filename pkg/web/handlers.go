package web

import (
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gonum.org/v1/plot/vg"

	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/telemetry"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/video"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Session      string            `json:"session"`
	MovementDone bool              `json:"movement_done"`
	Latest       tracking.Snapshot `json:"latest"`
	Summary      telemetry.Summary `json:"summary"`
	Clients      int               `json:"clients"`
}

// handleStatus returns the latest snapshot and a summary of the history
func (s *Server) handleStatus(c *fiber.Ctx) error {
	t := s.deps.Tracker
	return c.JSON(StatusResponse{
		Session:      t.SessionID(),
		MovementDone: t.MovementDone(),
		Latest:       t.Snapshot(),
		Summary:      telemetry.Summarize(s.deps.History.Samples()),
		Clients:      s.deps.Hub.ClientCount(),
	})
}

// handleHistory returns recorded samples, optionally after ?since=<unix ms>
// and capped to the newest ?limit=n.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	samples := s.deps.History.Samples()
	if since := c.QueryInt("since", 0); since > 0 {
		samples = s.deps.History.Since(time.UnixMilli(int64(since)))
	}
	if limit := c.QueryInt("limit", 0); limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	if samples == nil {
		samples = []tracking.Snapshot{}
	}
	return c.JSON(samples)
}

func (s *Server) handleGetTuning(c *fiber.Ctx) error {
	return c.JSON(s.deps.Tracker.GetTuningParams())
}

// handleSetTuning applies the non-zero fields of the body
func (s *Server) handleSetTuning(c *fiber.Ctx) error {
	var params tracking.TuningParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if params.Kp < 0 || params.Ki < 0 || params.Kd < 0 || params.MaxIntegral < 0 ||
		params.HeadGain < 0 || params.RateHz < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tuning values must not be negative"})
	}

	s.deps.Tracker.SetTuningParams(params)
	updated := s.deps.Tracker.GetTuningParams()
	s.logger.Info("tuning updated", "kp", updated.Kp, "ki", updated.Ki, "kd", updated.Kd,
		"head_gain", updated.HeadGain, "rate_hz", updated.RateHz)
	return c.JSON(updated)
}

// handlePlot renders the history; ?width and ?height are in inches
func (s *Server) handlePlot(c *fiber.Ctx) error {
	w := vg.Length(c.QueryFloat("width", 8)) * vg.Inch
	h := vg.Length(c.QueryFloat("height", 8)) * vg.Inch

	png, err := telemetry.RenderPNG(s.deps.History.Samples(), w, h)
	if errors.Is(err, telemetry.ErrNoData) {
		return c.SendStatus(fiber.StatusNoContent)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Type("png")
	return c.Send(png)
}

// handleFrame returns the last camera frame as JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.deps.Frames == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no frame source"})
	}
	f := s.deps.Frames.Peek()
	if f == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	data, err := video.RGBToJPEG(f.Image(), c.QueryInt("quality", frameQuality))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Type("jpg")
	return c.Send(data)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "camera not configurable"})
	}
	return c.JSON(s.deps.Camera.GetConfigJSON())
}

// handleSetCamera applies a preset or individual settings
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "camera not configurable"})
	}
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := s.deps.Camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.deps.Camera.GetConfigJSON())
}

// handleTelemetryWS streams telemetry messages from the hub
func (s *Server) handleTelemetryWS(c *websocket.Conn) {
	s.serveHub(s.deps.Hub, c)
}

// handleFramesWS streams JPEG frames as binary messages
func (s *Server) handleFramesWS(c *websocket.Conn) {
	if s.frames == nil {
		c.Close()
		return
	}
	s.serveHub(s.frames, c)
}

// serveHub attaches c to h. A stopped hub would close the client at once,
// so the connection is dropped up front with a log line instead.
func (s *Server) serveHub(h *hub.Hub, c *websocket.Conn) {
	if !h.IsRunning() {
		s.logger.Warn("websocket rejected, hub not running")
		c.Close()
		return
	}
	hub.NewClient(h, c).Run()
}
