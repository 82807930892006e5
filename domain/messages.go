package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

// DefaultTopicPrefix is the root of every per-device topic
const DefaultTopicPrefix = "devices"

// MessageKind identifies the last segment of a device topic
type MessageKind string

const (
	MessageKindAttendance MessageKind = "attendance"
	MessageKindStatus     MessageKind = "status"
	MessageKindResponse   MessageKind = "response"
	MessageKindCommand    MessageKind = "command"
)

// Topics builds and parses {prefix}/{serial}/{kind} topic names
type Topics struct {
	Prefix string
}

func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) For(serial string, kind MessageKind) string {
	return t.Prefix + "/" + serial + "/" + string(kind)
}

func (t Topics) Response(serial string) string { return t.For(serial, MessageKindResponse) }
func (t Topics) Command(serial string) string  { return t.For(serial, MessageKindCommand) }

// Subscriptions returns the wildcard filters for inbound device traffic
func (t Topics) Subscriptions() []string {
	return []string{
		t.For("+", MessageKindAttendance),
		t.For("+", MessageKindStatus),
	}
}

// Parse splits a topic into serial and kind. ok is false when the topic is not under the prefix
// or does not have exactly one serial segment.
func (t Topics) Parse(topic string) (serial string, kind MessageKind, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], MessageKind(parts[1]), true
}

// ErrMalformedMessage wraps every decoding failure of an inbound payload
var ErrMalformedMessage = errors.New("malformed message")

// AttendanceMessage is the body published on {prefix}/{serial}/attendance
type AttendanceMessage struct {
	BadgeID   string  `json:"badge_id"`
	Timestamp *string `json:"timestamp,omitempty"`
	Type      *string `json:"type,omitempty"`
}

// DecodeAttendance parses and checks a scan payload
func DecodeAttendance(payload []byte) (entities.ScanRequest, error) {
	var msg AttendanceMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return entities.ScanRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if strings.TrimSpace(msg.BadgeID) == "" {
		return entities.ScanRequest{}, fmt.Errorf("%w: missing badge_id", ErrMalformedMessage)
	}

	req := entities.ScanRequest{BadgeID: strings.TrimSpace(msg.BadgeID)}
	if msg.Timestamp != nil && *msg.Timestamp != "" {
		ts, err := ParseTimestamp(*msg.Timestamp)
		if err != nil {
			return entities.ScanRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		req.Timestamp = &ts
	}
	if msg.Type != nil && *msg.Type != "" {
		typ, err := entities.ParseAttendanceType(*msg.Type)
		if err != nil {
			return entities.ScanRequest{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		req.Type = &typ
	}
	return req, nil
}

// DecodeHeartbeat parses and checks a status payload
func DecodeHeartbeat(payload []byte) (entities.Heartbeat, error) {
	var hb entities.Heartbeat
	if err := json.Unmarshal(payload, &hb); err != nil {
		return entities.Heartbeat{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := hb.Validate(); err != nil {
		return entities.Heartbeat{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return hb, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts RFC3339 and the zone-less ISO forms terminals commonly send.
// Zone-less values are taken as local time.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
