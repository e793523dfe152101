package robot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/internal/httpc"
)

// DefaultHTTPTimeout bounds every control-board request so a stalled daemon
// cannot hold a control tick indefinitely.
const DefaultHTTPTimeout = 2 * time.Second

// HTTPController implements Capabilities using a control-board daemon's JSON API.
//
// Endpoints (per joint name, e.g. "eye_yaw"):
//   - POST {base}/api/joints/{joint}/position  {"target": deg}
//   - POST {base}/api/joints/{joint}/velocity  {"velocity": deg_per_s}
//   - POST {base}/api/joints/{joint}/mode      {"mode": "position"|"velocity"}
//   - GET  {base}/api/joints/{joint}/encoder   -> {"position": deg}
//   - GET  {base}/api/daemon/status            -> {"state": "..."}
type HTTPController struct {
	BaseURL string

	client *http.Client
	mu     sync.RWMutex
	closed bool
}

// NewHTTPController creates a controller for the daemon at baseURL
// (e.g. "http://192.168.1.20:8000").
func NewHTTPController(baseURL string) *HTTPController {
	return &HTTPController{
		BaseURL: baseURL,
		client:  httpc.NewClient(DefaultHTTPTimeout),
	}
}

// DialHTTP creates a controller and confirms the daemon is reachable.
func DialHTTP(baseURL string) (*HTTPController, error) {
	c := NewHTTPController(baseURL)
	state, err := c.GetDaemonStatus()
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", baseURL, err)
	}
	if state != "running" {
		return nil, fmt.Errorf("connect %s: daemon state %q", baseURL, state)
	}
	return c, nil
}

// PositionMove implements PositionController.
func (c *HTTPController) PositionMove(j Joint, deg float64) error {
	return c.post(j, "position", map[string]float64{"target": deg})
}

// VelocityMove implements VelocityController.
func (c *HTTPController) VelocityMove(j Joint, degPerSec float64) error {
	return c.post(j, "velocity", map[string]float64{"velocity": degPerSec})
}

// SetControlMode implements ModeController.
func (c *HTTPController) SetControlMode(j Joint, m Mode) error {
	return c.post(j, "mode", map[string]string{"mode": m.String()})
}

// Encoder implements EncoderReader.
func (c *HTTPController) Encoder(j Joint) (float64, error) {
	if err := c.check(j); err != nil {
		return 0, err
	}

	resp, err := c.client.Get(fmt.Sprintf("%s/api/joints/%s/encoder", c.BaseURL, j))
	if err != nil {
		return 0, fmt.Errorf("encoder request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("encoder request: status %d", resp.StatusCode)
	}

	var reading struct {
		Position float64 `json:"position"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return 0, fmt.Errorf("failed to decode encoder: %w", err)
	}
	return reading.Position, nil
}

// GetDaemonStatus returns the control-board daemon state.
func (c *HTTPController) GetDaemonStatus() (string, error) {
	resp, err := c.client.Get(c.BaseURL + "/api/daemon/status")
	if err != nil {
		return "", fmt.Errorf("daemon status request failed: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("failed to decode daemon status: %w", err)
	}

	return status.State, nil
}

// Close marks the controller closed. The daemon keeps its own state.
func (c *HTTPController) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPController) check(j Joint) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !validJoint(j) {
		return ErrUnknownJoint
	}
	return nil
}

// post sends a joint command to the daemon.
func (c *HTTPController) post(j Joint, op string, payload any) error {
	if err := c.check(j); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	resp, err := c.client.Post(
		fmt.Sprintf("%s/api/joints/%s/%s", c.BaseURL, j, op),
		"application/json",
		bytes.NewReader(data),
	)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s request: status %d", op, resp.StatusCode)
	}
	return nil
}
