package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain"
	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
	"github.com/kuilinga/terminal-gateway/internal/codec"
	"github.com/kuilinga/terminal-gateway/internal/metrics"
)

// responseQoS matches the broker default used for validation answers
const responseQoS byte = 0

// AttendanceService validates badge scans coming from terminals and records accepted ones
type AttendanceService struct {
	devices     repositories.DeviceRepository
	employees   repositories.EmployeeRepository
	attendances repositories.AttendanceRepository
	heartbeats  *HeartbeatService
	publisher   repositories.MessagePublisher
	broadcaster repositories.AttendanceBroadcaster
	topics      domain.Topics
	metrics     *metrics.Metrics
	logger      *zap.Logger
	phrases     Phrases

	now func() time.Time
}

// NewAttendanceService creates a new attendance validation service
func NewAttendanceService(
	devices repositories.DeviceRepository,
	employees repositories.EmployeeRepository,
	attendances repositories.AttendanceRepository,
	heartbeats *HeartbeatService,
	publisher repositories.MessagePublisher,
	broadcaster repositories.AttendanceBroadcaster,
	topics domain.Topics,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AttendanceService {
	return &AttendanceService{
		devices:     devices,
		employees:   employees,
		attendances: attendances,
		heartbeats:  heartbeats,
		publisher:   publisher,
		broadcaster: broadcaster,
		topics:      topics,
		metrics:     m,
		logger:      logger,
		phrases:     EnglishPhrases,
		now:         time.Now,
	}
}

// SetPhrases changes the language of the messages sent to terminals
func (s *AttendanceService) SetPhrases(p Phrases) {
	s.phrases = p
}

// ValidateScan decides the outcome of one badge scan, publishes it to the terminal and,
// when accepted, records the attendance and notifies live subscribers.
//
// Unknown devices get no answer and return ErrUnknownDevice. Storage failures abort before
// anything is published; the terminal retries or times out on its own.
func (s *AttendanceService) ValidateScan(ctx context.Context, serial string, req entities.ScanRequest) (*entities.ValidationOutcome, error) {
	device, err := s.devices.GetBySerialNumber(ctx, serial)
	if err != nil {
		if errors.Is(err, repositories.ErrDeviceNotFound) {
			return nil, ErrUnknownDevice
		}
		return nil, fmt.Errorf("failed to load device %s: %w", serial, err)
	}

	now := s.now()
	if err := s.heartbeats.Touch(ctx, device, now); err != nil {
		return nil, err
	}

	outcome, record, err := s.decide(ctx, device, req, now)
	if err != nil {
		return nil, err
	}

	if err := s.respond(ctx, serial, outcome); err != nil {
		return outcome, err
	}

	if record != nil {
		s.broadcast(ctx, record.ID)
	}
	return outcome, nil
}

func (s *AttendanceService) decide(ctx context.Context, device *entities.Device, req entities.ScanRequest, now time.Time) (*entities.ValidationOutcome, *entities.AttendanceRecord, error) {
	employee, err := s.employees.GetByBadge(ctx, req.BadgeID)
	if err != nil {
		if !errors.Is(err, repositories.ErrEmployeeNotFound) {
			return nil, nil, fmt.Errorf("failed to look up badge %s: %w", req.BadgeID, err)
		}
		s.logger.Warn("Unknown badge",
			zap.String("serial", device.SerialNumber),
			zap.String("badgeID", req.BadgeID))
		return &entities.ValidationOutcome{
			Code:      entities.OutcomeRejected,
			Message:   s.phrases.BadgeUnknown,
			Timestamp: now,
		}, nil, nil
	}

	name := employee.DisplayName()
	if !employee.CanClockIn() {
		s.logger.Warn("Deactivated badge",
			zap.String("serial", device.SerialNumber),
			zap.String("badgeID", req.BadgeID),
			zap.String("employeeID", employee.ID),
			zap.Bool("employeeActive", employee.IsActive),
			zap.Bool("badgeActive", employee.BadgeActive))
		return &entities.ValidationOutcome{
			Code:         entities.OutcomeRefused,
			Message:      s.phrases.BadgeDeactivated,
			EmployeeName: name,
			Timestamp:    now,
		}, nil, nil
	}

	timestamp := now
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}
	attendanceType := entities.AttendanceTypeIn
	if req.Type != nil {
		attendanceType = *req.Type
	}

	deviceID := device.ID
	record := &entities.AttendanceRecord{
		Timestamp:  timestamp,
		Type:       attendanceType,
		EmployeeID: employee.ID,
		DeviceID:   &deviceID,
		ExtraData: map[string]interface{}{
			"badge_id":      req.BadgeID,
			"device_serial": device.SerialNumber,
		},
	}
	if err := s.attendances.Create(ctx, record); err != nil {
		return nil, nil, fmt.Errorf("failed to create attendance for %s: %w", employee.ID, err)
	}

	s.logger.Info("Attendance recorded",
		zap.String("serial", device.SerialNumber),
		zap.String("employeeID", employee.ID),
		zap.String("attendanceID", record.ID),
		zap.String("type", string(attendanceType)))

	return &entities.ValidationOutcome{
		Code:           entities.OutcomeAccepted,
		Message:        s.phrases.Greeting(now) + " " + name,
		EmployeeName:   name,
		AttendanceType: attendanceType,
		Timestamp:      now,
	}, record, nil
}

func (s *AttendanceService) respond(ctx context.Context, serial string, outcome *entities.ValidationOutcome) error {
	payload, err := codec.EncodeValidation(*outcome)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	topic := s.topics.Response(serial)
	if err := s.publisher.Publish(ctx, topic, responseQoS, payload); err != nil {
		s.logger.Error("Failed to publish validation response",
			zap.String("topic", topic),
			zap.String("outcome", string(outcome.Code)),
			zap.Error(err))
		return fmt.Errorf("failed to publish response to %s: %w", topic, err)
	}

	s.metrics.ScanAnswered(string(outcome.Code))
	s.logger.Info("Validation response sent",
		zap.String("topic", topic),
		zap.String("outcome", string(outcome.Code)))
	return nil
}

// broadcast failures stay here: the terminal already has its answer.
func (s *AttendanceService) broadcast(ctx context.Context, recordID string) {
	if s.broadcaster == nil {
		return
	}

	event, err := s.attendances.GetEvent(ctx, recordID)
	if err != nil {
		s.logger.Error("Failed to load attendance for broadcast",
			zap.String("attendanceID", recordID),
			zap.Error(err))
		return
	}

	if err := s.broadcaster.Broadcast(ctx, event); err != nil {
		s.logger.Error("Failed to broadcast attendance",
			zap.String("attendanceID", recordID),
			zap.Error(err))
	}
}
