package protocol

import "time"

// ShapeStaticSphere is the only shape the gaze demo uses.
const ShapeStaticSphere = "ssph"

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCreateSphereMessage creates a world.mk request for a static sphere
func NewCreateSphereMessage(id string, radius float64, pos Vec3, color RGB) (*Message, error) {
	msg, err := NewMessage(TypeSceneCreate, CreateData{
		Shape:  ShapeStaticSphere,
		Radius: radius,
		Pos:    pos,
		Color:  color,
	})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewMoveSphereMessage creates a world.set request
func NewMoveSphereMessage(id string, objectID int, pos Vec3) (*Message, error) {
	msg, err := NewMessage(TypeSceneSet, SetData{
		Shape:    ShapeStaticSphere,
		ObjectID: objectID,
		Pos:      pos,
	})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewDeleteAllMessage creates a world.del request
func NewDeleteAllMessage(id string) (*Message, error) {
	msg, err := NewMessage(TypeSceneDeleteAll, DeleteData{Target: "all"})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewReplyMessage answers the request with the given id
func NewReplyMessage(id string, objectID int, cmdErr error) (*Message, error) {
	data := ReplyData{OK: cmdErr == nil, ObjectID: objectID}
	if cmdErr != nil {
		data.Error = cmdErr.Error()
	}
	msg, err := NewMessage(TypeSceneReply, data)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewTelemetryMessage creates a telemetry message
func NewTelemetryMessage(data TelemetryData) (*Message, error) {
	return NewMessage(TypeTelemetry, data)
}

// NewStatusMessage creates a movement status message
func NewStatusMessage(done bool, session string) (*Message, error) {
	return NewMessage(TypeStatus, StatusData{MovementDone: done, Session: session})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetCreateData extracts a world.mk payload
func (m *Message) GetCreateData() (*CreateData, error) {
	var data CreateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetSetData extracts a world.set payload
func (m *Message) GetSetData() (*SetData, error) {
	var data SetData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetReplyData extracts a world.ack payload
func (m *Message) GetReplyData() (*ReplyData, error) {
	var data ReplyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTelemetryData extracts telemetry from a message
func (m *Message) GetTelemetryData() (*TelemetryData, error) {
	var data TelemetryData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
