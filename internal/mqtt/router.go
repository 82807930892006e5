package mqtt

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain"
	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/internal/metrics"
	"github.com/kuilinga/terminal-gateway/usecase"
)

// ScanValidator answers badge scans
type ScanValidator interface {
	ValidateScan(ctx context.Context, serial string, req entities.ScanRequest) (*entities.ValidationOutcome, error)
}

// HeartbeatIngestor records terminal status reports
type HeartbeatIngestor interface {
	Ingest(ctx context.Context, serial string, hb entities.Heartbeat, arrival time.Time) error
}

// Router dispatches device topics to the matching use case.
// Nothing it handles is ever returned to the broker: failures are logged and counted.
type Router struct {
	topics     domain.Topics
	scans      ScanValidator
	heartbeats HeartbeatIngestor
	metrics    *metrics.Metrics
	logger     *zap.Logger

	now func() time.Time
}

func NewRouter(topics domain.Topics, scans ScanValidator, heartbeats HeartbeatIngestor, m *metrics.Metrics, logger *zap.Logger) *Router {
	return &Router{
		topics:     topics,
		scans:      scans,
		heartbeats: heartbeats,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleMessage implements MessageHandler interface
func (r *Router) HandleMessage(ctx context.Context, topic string, payload []byte) {
	arrival := r.now()

	serial, kind, ok := r.topics.Parse(topic)
	if !ok {
		r.drop(metrics.DropUnknownTopic, "Ignoring message on unexpected topic", zap.String("topic", topic))
		return
	}

	switch kind {
	case domain.MessageKindAttendance:
		r.metrics.MessageReceived(string(kind))
		r.handleAttendance(ctx, serial, payload)
	case domain.MessageKindStatus:
		r.metrics.MessageReceived(string(kind))
		r.handleStatus(ctx, serial, payload, arrival)
	default:
		r.drop(metrics.DropUnknownTopic, "Ignoring message of unknown kind",
			zap.String("topic", topic),
			zap.String("kind", string(kind)))
	}
}

func (r *Router) handleAttendance(ctx context.Context, serial string, payload []byte) {
	req, err := domain.DecodeAttendance(payload)
	if err != nil {
		r.drop(metrics.DropMalformed, "Dropping malformed attendance message",
			zap.String("serial", serial),
			zap.Error(err))
		return
	}

	r.logger.Info("Badge scan received",
		zap.String("serial", serial),
		zap.String("badgeID", req.BadgeID))

	if _, err := r.scans.ValidateScan(ctx, serial, req); err != nil {
		r.fail(serial, "attendance", err)
	}
}

func (r *Router) handleStatus(ctx context.Context, serial string, payload []byte, arrival time.Time) {
	hb, err := domain.DecodeHeartbeat(payload)
	if err != nil {
		r.drop(metrics.DropMalformed, "Dropping malformed status message",
			zap.String("serial", serial),
			zap.Error(err))
		return
	}

	if err := r.heartbeats.Ingest(ctx, serial, hb, arrival); err != nil {
		r.fail(serial, "status", err)
		return
	}
	r.metrics.HeartbeatRecorded()
}

func (r *Router) fail(serial, kind string, err error) {
	if errors.Is(err, usecase.ErrUnknownDevice) {
		r.drop(metrics.DropUnknownDevice, "Message from unknown device",
			zap.String("serial", serial),
			zap.String("kind", kind))
		return
	}
	r.metrics.MessageDropped(metrics.DropHandlerError)
	r.logger.Error("Failed to handle device message",
		zap.String("serial", serial),
		zap.String("kind", kind),
		zap.Error(err))
}

func (r *Router) drop(reason, msg string, fields ...zap.Field) {
	r.metrics.MessageDropped(reason)
	r.logger.Warn(msg, fields...)
}
