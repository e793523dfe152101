// Package hub fans telemetry out to dashboard websocket clients.
package hub

import (
	"fmt"

	"github.com/teslashibe/go-gaze/pkg/protocol"
)

// MessageType selects the websocket frame opcode.
type MessageType int

const (
	JSONMessage   MessageType = iota // text frame
	BinaryMessage                    // binary frame, e.g. a JPEG snapshot
)

// Message is one queued frame.
type Message struct {
	Type MessageType
	Data []byte
}

func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// Encode turns a protocol envelope into a text frame.
func Encode(msg *protocol.Message) (Message, error) {
	if msg == nil {
		return Message{}, fmt.Errorf("hub: nil protocol message")
	}
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, fmt.Errorf("hub: encode %s: %w", msg.Type, err)
	}
	return NewJSONMessage(data), nil
}
