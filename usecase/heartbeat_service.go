package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

// HeartbeatService records terminal liveness and telemetry. Together with the liveness
// monitor it is the only writer of a device's status.
type HeartbeatService struct {
	devices repositories.DeviceRepository
	logger  *zap.Logger
}

// NewHeartbeatService creates a new heartbeat service
func NewHeartbeatService(devices repositories.DeviceRepository, logger *zap.Logger) *HeartbeatService {
	return &HeartbeatService{
		devices: devices,
		logger:  logger,
	}
}

// Ingest applies a status message from the terminal with the given serial.
// Unknown serials return ErrUnknownDevice; no device is ever created here.
func (s *HeartbeatService) Ingest(ctx context.Context, serial string, hb entities.Heartbeat, arrival time.Time) error {
	device, err := s.devices.GetBySerialNumber(ctx, serial)
	if err != nil {
		if errors.Is(err, repositories.ErrDeviceNotFound) {
			return ErrUnknownDevice
		}
		return fmt.Errorf("failed to load device %s: %w", serial, err)
	}

	if err := s.devices.RecordHeartbeat(ctx, device.ID, hb, arrival); err != nil {
		return fmt.Errorf("failed to record heartbeat for %s: %w", serial, err)
	}

	fields := []zap.Field{
		zap.String("serial", serial),
		zap.Time("lastSeenAt", arrival),
	}
	if hb.FirmwareVersion != nil {
		fields = append(fields, zap.String("firmware", *hb.FirmwareVersion))
	}
	if hb.BatteryLevel != nil {
		fields = append(fields, zap.Int("battery", *hb.BatteryLevel))
	}
	if hb.WifiRSSI != nil {
		fields = append(fields, zap.Int("rssi", *hb.WifiRSSI))
	}
	s.logger.Info("Device heartbeat recorded", fields...)

	return nil
}

// Touch marks a device online because it just sent something other than a heartbeat
func (s *HeartbeatService) Touch(ctx context.Context, device *entities.Device, at time.Time) error {
	if err := s.devices.TouchLastSeen(ctx, device.ID, at); err != nil {
		return fmt.Errorf("failed to update last seen for %s: %w", device.SerialNumber, err)
	}
	return nil
}
