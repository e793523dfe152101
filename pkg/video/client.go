// Package video receives the head camera's WebRTC stream and exposes the
// latest decoded frame as JPEG.
package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-gaze/internal/log"
)

// ErrNoFrame is returned before the first frame has been decoded.
var ErrNoFrame = errors.New("video: no frame available")

// DefaultProducer is the producer name advertised by the head's camera pipeline.
const DefaultProducer = "gaze-camera"

// Config holds WebRTC client settings
type Config struct {
	SignallingURL  string        // ws://host:8443
	Producer       string        // producer meta "name" to subscribe to
	DecodeInterval time.Duration // minimum spacing between H264 decodes
	ConnectTimeout time.Duration // wait for the first video track
}

// DefaultConfig returns settings for a head at the given host.
func DefaultConfig(host string) Config {
	return Config{
		SignallingURL:  fmt.Sprintf("ws://%s:8443", host),
		Producer:       DefaultProducer,
		DecodeInterval: 50 * time.Millisecond,
		ConnectTimeout: 15 * time.Second,
	}
}

// Client connects to a GStreamer webrtcsink signalling server and decodes
// the H264 track it receives.
type Client struct {
	config Config
	logger *slog.Logger

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	myPeerID   string
	producerID string

	sessionMu sync.RWMutex
	sessionID string

	decoder    *FastDecoder
	frameReady chan struct{}

	closeMu sync.RWMutex
	closed  bool
}

// NewClient creates a new WebRTC video client
func NewClient(config Config) *Client {
	if config.Producer == "" {
		config.Producer = DefaultProducer
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 15 * time.Second
	}
	return &Client{
		config:     config,
		logger:     log.With("component", "video", "url", config.SignallingURL),
		decoder:    NewFastDecoder(config.DecodeInterval),
		frameReady: make(chan struct{}, 1),
	}
}

// Connect establishes the WebRTC connection
func (c *Client) Connect() error {
	c.logger.Info("connecting to signalling server")

	if err := c.dialSignalling(); err != nil {
		return err
	}
	c.logger.Debug("found producer", "peer", c.myPeerID, "producer", c.producerID)

	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection failed: %w", err)
	}

	if err := c.startSession(); err != nil {
		return fmt.Errorf("start session failed: %w", err)
	}

	go c.handleSignalling()

	select {
	case <-c.frameReady:
		c.logger.Info("video connected")
	case <-time.After(c.config.ConnectTimeout):
		return fmt.Errorf("timeout waiting for video")
	}
	return nil
}

// dialSignalling opens the websocket and resolves our peer and producer ids.
func (c *Client) dialSignalling() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	var err error
	c.ws, _, err = dialer.Dial(c.config.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect failed: %w", err)
	}

	if err := c.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome failed: %w", err)
	}
	if err := c.findProducer(); err != nil {
		return fmt.Errorf("find producer failed: %w", err)
	}
	return nil
}

func (c *Client) waitForWelcome() error {
	c.ws.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	id, err := parseWelcome(msg)
	if err != nil {
		return err
	}
	c.myPeerID = id
	return nil
}

func (c *Client) findProducer() error {
	c.wsMutex.Lock()
	err := c.ws.WriteJSON(map[string]string{"type": "list"})
	c.wsMutex.Unlock()
	if err != nil {
		return err
	}

	c.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := c.ws.ReadMessage()
	c.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	id, err := parseProducer(msg, c.config.Producer)
	if err != nil {
		return err
	}
	c.producerID = id
	return nil
}

func parseWelcome(msg []byte) (string, error) {
	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return "", err
	}
	if welcome.Type != "welcome" {
		return "", fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	return welcome.PeerID, nil
}

func parseProducer(msg []byte, name string) (string, error) {
	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return "", err
	}

	for _, p := range listResp.Producers {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%s producer not found in %d producers", name, len(listResp.Producers))
}

func (c *Client) createPeerConnection() error {
	var err error
	c.pc, err = webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	// We want to receive video
	if _, err = c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info("got track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.handleVideoTrack(track)
		}
	})

	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			c.sendICECandidate(candidate)
		}
	})

	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("connection state", "state", state.String())
	})

	return nil
}

func (c *Client) startSession() error {
	c.wsMutex.Lock()
	err := c.ws.WriteJSON(map[string]string{
		"type":   "startSession",
		"peerId": c.producerID,
	})
	c.wsMutex.Unlock()
	return err
}

func (c *Client) isClosed() bool {
	c.closeMu.RLock()
	defer c.closeMu.RUnlock()
	return c.closed
}

func (c *Client) session() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionID
}

func (c *Client) handleSignalling() {
	for !c.isClosed() {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("signalling error", "error", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg, &baseMsg); err != nil {
			continue
		}

		switch baseMsg.Type {
		case "sessionStarted":
			c.sessionMu.Lock()
			c.sessionID = baseMsg.SessionID
			c.sessionMu.Unlock()

		case "peer":
			c.handlePeerMessage(msg)

		case "endSession":
			return
		}
	}
}

// peerMessage is an SDP or ICE payload relayed by the signaller.
type peerMessage struct {
	SDP *struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	} `json:"sdp,omitempty"`
	ICE *struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	} `json:"ice,omitempty"`
}

func (c *Client) handlePeerMessage(msg []byte) {
	var peerMsg peerMessage
	if err := json.Unmarshal(msg, &peerMsg); err != nil {
		c.logger.Warn("bad peer message", "error", err)
		return
	}

	if peerMsg.SDP != nil && peerMsg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peerMsg.SDP.SDP,
		}

		if err := c.pc.SetRemoteDescription(offer); err != nil {
			c.logger.Warn("SetRemoteDescription failed", "error", err)
			return
		}

		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			c.logger.Warn("CreateAnswer failed", "error", err)
			return
		}

		if err := c.pc.SetLocalDescription(answer); err != nil {
			c.logger.Warn("SetLocalDescription failed", "error", err)
			return
		}

		c.sendSDP(answer)
	}

	if peerMsg.ICE != nil {
		if err := c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peerMsg.ICE.Candidate,
			SDPMid:        peerMsg.ICE.SDPMid,
			SDPMLineIndex: peerMsg.ICE.SDPMLineIndex,
		}); err != nil {
			c.logger.Debug("AddICECandidate failed", "error", err)
		}
	}
}

func (c *Client) sendSDP(sdp webrtc.SessionDescription) {
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": c.session(),
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	}
	c.wsMutex.Lock()
	c.ws.WriteJSON(msg)
	c.wsMutex.Unlock()
}

func (c *Client) sendICECandidate(candidate *webrtc.ICECandidate) {
	sessionID := c.session()
	if sessionID == "" {
		return
	}

	init := candidate.ToJSON()
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	}
	c.wsMutex.Lock()
	c.ws.WriteJSON(msg)
	c.wsMutex.Unlock()
}

// handleVideoTrack depacketizes RTP into an Annex-B access unit and decodes
// it whenever the marker bit closes a frame.
func (c *Client) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.frameReady <- struct{}{}:
	default:
	}

	var h264 codecs.H264Packet
	var au []byte

	for !c.isClosed() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		nal, err := h264.Unmarshal(pkt.Payload)
		if err != nil {
			continue
		}
		au = append(au, nal...)

		if pkt.Marker {
			if _, err := c.decoder.DecodeNAL(au); err != nil {
				c.logger.Debug("decode failed", "error", err)
			}
			au = au[:0]
		}
	}
}

// GetFrame returns the latest video frame as JPEG bytes
func (c *Client) GetFrame() ([]byte, error) {
	frame := c.decoder.GetLatestFrame()
	if frame == nil {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// CaptureJPEG is GetFrame under the name frame pollers expect.
func (c *Client) CaptureJPEG() ([]byte, error) {
	return c.GetFrame()
}

// WaitForFrame waits for a frame to be available
func (c *Client) WaitForFrame(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		frame, err := c.GetFrame()
		if err == nil {
			return frame, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return nil, fmt.Errorf("timeout waiting for frame")
}

// Close closes the WebRTC connection
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	var errs []error
	if c.pc != nil {
		errs = append(errs, c.pc.Close())
	}
	if c.ws != nil {
		errs = append(errs, c.ws.Close())
	}
	c.decoder.Close()
	return errors.Join(errs...)
}
