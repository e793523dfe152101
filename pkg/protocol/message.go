// Package protocol defines the WebSocket message types for scene control
// and telemetry streaming.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Controller → scene server
	TypeSceneCreate    MessageType = "world.mk"  // Create an object
	TypeSceneSet       MessageType = "world.set" // Move an object
	TypeSceneDeleteAll MessageType = "world.del" // Remove every object

	// Scene server → controller
	TypeSceneReply MessageType = "world.ack" // Result of a scene command

	// Tracker → dashboard
	TypeTelemetry MessageType = "telemetry" // One tracker snapshot
	TypeStatus    MessageType = "status"    // Movement status changes

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // Correlates a reply with its request
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Scene Message Types
// =============================================================================

// Vec3 is a world position in meters.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RGB is an object color, each channel 0-1.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// CreateData asks the scene to create a static object
type CreateData struct {
	Shape  string  `json:"shape"` // "ssph" (static sphere)
	Radius float64 `json:"radius"`
	Pos    Vec3    `json:"pos"`
	Color  RGB     `json:"color"`
}

// SetData moves an existing object
type SetData struct {
	Shape    string `json:"shape"`
	ObjectID int    `json:"object_id"` // 1-based per shape
	Pos      Vec3   `json:"pos"`
}

// DeleteData removes objects; only "all" is supported
type DeleteData struct {
	Target string `json:"target"`
}

// ReplyData is the scene server's answer to a command
type ReplyData struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	ObjectID int    `json:"object_id,omitempty"` // Set for world.mk
}

// =============================================================================
// Telemetry Message Types
// =============================================================================

// TelemetryData is one sample of the gaze loop
type TelemetryData struct {
	ErrorX       int     `json:"error_x"`
	ErrorY       int     `json:"error_y"`
	EyeYaw       float64 `json:"eye_yaw"`
	EyeTilt      float64 `json:"eye_tilt"`
	NeckPitch    float64 `json:"neck_pitch"`
	NeckYaw      float64 `json:"neck_yaw"`
	MovementDone bool    `json:"movement_done"`
	Ticks        uint64  `json:"ticks"`
}

// StatusData reports a movement status change
type StatusData struct {
	MovementDone bool   `json:"movement_done"`
	Session      string `json:"session,omitempty"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
