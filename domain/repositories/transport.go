package repositories

import (
	"context"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

// MessagePublisher abstracts the broker connection used to reach terminals
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, qos byte, payload []byte) error
	IsConnected() bool
}

// AttendanceBroadcaster hands a new attendance event to live subscribers
type AttendanceBroadcaster interface {
	Broadcast(ctx context.Context, event *entities.AttendanceEvent) error
}
