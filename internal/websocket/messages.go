package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

// MessageType defines the type of a realtime message
type MessageType string

const (
	MessageTypeNewAttendance MessageType = "new_attendance"
	MessageTypeConnected     MessageType = "connected"
)

// Envelope is the frame sent to realtime subscribers
type Envelope struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// NewAttendanceMessage wraps an accepted attendance for subscribers
func NewAttendanceMessage(event *entities.AttendanceEvent) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("attendance event cannot be nil")
	}
	return json.Marshal(Envelope{
		Type:    MessageTypeNewAttendance,
		Payload: event,
	})
}

// NewConnectedMessage greets a subscriber right after the upgrade
func NewConnectedMessage() []byte {
	data, _ := json.Marshal(Envelope{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return data
}

// ParseEnvelope decodes a frame and returns its type. Payload stays raw JSON.
func ParseEnvelope(data []byte) (MessageType, json.RawMessage, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if raw.Type == "" {
		return "", nil, fmt.Errorf("message missing type field")
	}
	return raw.Type, raw.Payload, nil
}
