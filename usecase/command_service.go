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

// commandQoS asks the broker for at-least-once delivery of commands
const commandQoS byte = 1

// Caller identifies who asks for a command and which organization they act for
type Caller struct {
	UserID         string
	OrganizationID string
	// Elevated callers may target devices of any organization
	Elevated bool
}

// CanAccess reports whether the caller may act on a device of the given organization
func (c Caller) CanAccess(organizationID string) bool {
	return c.Elevated || (c.OrganizationID != "" && c.OrganizationID == organizationID)
}

// CommandReceipt reports that a command was handed to the broker.
// Terminals never acknowledge commands, so Published says nothing about execution.
type CommandReceipt struct {
	Published    bool   `json:"success"`
	DeviceID     string `json:"device_id,omitempty"`
	DeviceSerial string `json:"device_serial"`
	Command      string `json:"command"`
	CommandCode  string `json:"command_code"`
	Message      string `json:"message"`
}

// BulkCommandResult aggregates per-device receipts of a bulk dispatch
type BulkCommandResult struct {
	Success      bool              `json:"success"`
	TotalDevices int               `json:"total_devices"`
	Successful   int               `json:"successful"`
	Failed       int               `json:"failed"`
	Results      []*CommandReceipt `json:"results"`
}

// CommandService publishes administrative commands to terminals
type CommandService struct {
	devices   repositories.DeviceRepository
	publisher repositories.MessagePublisher
	topics    domain.Topics
	metrics   *metrics.Metrics
	logger    *zap.Logger

	now func() time.Time
}

// NewCommandService creates a new command service
func NewCommandService(
	devices repositories.DeviceRepository,
	publisher repositories.MessagePublisher,
	topics domain.Topics,
	m *metrics.Metrics,
	logger *zap.Logger,
) *CommandService {
	return &CommandService{
		devices:   devices,
		publisher: publisher,
		topics:    topics,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Send publishes command to the terminal with the given serial
func (s *CommandService) Send(ctx context.Context, serial string, command entities.CommandType) (*CommandReceipt, error) {
	code, ok := codec.CommandCode(command)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	if !s.publisher.IsConnected() {
		s.logger.Error("Broker not connected, command not sent",
			zap.String("serial", serial),
			zap.String("command", string(command)))
		return nil, ErrTransportUnavailable
	}

	payload, err := codec.EncodeCommand(entities.CommandEnvelope{Command: command, Timestamp: s.now()})
	if err != nil {
		return nil, err
	}

	receipt := &CommandReceipt{
		DeviceSerial: serial,
		Command:      string(command),
		CommandCode:  string(code),
	}
	if err := s.publish(ctx, serial, string(command), payload); err != nil {
		return nil, err
	}

	receipt.Published = true
	receipt.Message = fmt.Sprintf("Command %s sent to terminal %s", string(code), serial)
	return receipt, nil
}

// SendCode publishes a raw firmware code to the terminal with the given serial
func (s *CommandService) SendCode(ctx context.Context, serial, code string) (*CommandReceipt, error) {
	if !codec.ValidRawCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	if !s.publisher.IsConnected() {
		return nil, ErrTransportUnavailable
	}

	payload, err := codec.EncodeRawCode(code, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, serial, "raw", payload); err != nil {
		return nil, err
	}

	return &CommandReceipt{
		Published:    true,
		DeviceSerial: serial,
		CommandCode:  code,
		Message:      fmt.Sprintf("Code %s sent to terminal %s", code, serial),
	}, nil
}

// SendToDevice resolves the device by id, checks the caller may reach it and sends command
func (s *CommandService) SendToDevice(ctx context.Context, caller Caller, deviceID string, command entities.CommandType) (*CommandReceipt, error) {
	device, err := s.resolve(ctx, caller, deviceID)
	if err != nil {
		return nil, err
	}

	receipt, err := s.Send(ctx, device.SerialNumber, command)
	if err != nil {
		return nil, err
	}
	receipt.DeviceID = device.ID
	return receipt, nil
}

// SendCodeToDevice is SendCode for a device id, with the same checks as SendToDevice
func (s *CommandService) SendCodeToDevice(ctx context.Context, caller Caller, deviceID, code string) (*CommandReceipt, error) {
	if !codec.ValidRawCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	device, err := s.resolve(ctx, caller, deviceID)
	if err != nil {
		return nil, err
	}

	receipt, err := s.SendCode(ctx, device.SerialNumber, code)
	if err != nil {
		return nil, err
	}
	receipt.DeviceID = device.ID
	return receipt, nil
}

// SendBulk sends command to every device id independently. A failing target is recorded
// in the result and never stops the remaining ones.
func (s *CommandService) SendBulk(ctx context.Context, caller Caller, deviceIDs []string, command entities.CommandType) *BulkCommandResult {
	result := &BulkCommandResult{
		TotalDevices: len(deviceIDs),
		Results:      make([]*CommandReceipt, 0, len(deviceIDs)),
	}

	code, _ := codec.CommandCode(command)
	for _, id := range deviceIDs {
		receipt, err := s.SendToDevice(ctx, caller, id, command)
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, &CommandReceipt{
				Published:   false,
				DeviceID:    id,
				Command:     string(command),
				CommandCode: string(code),
				Message:     err.Error(),
			})
			continue
		}
		result.Successful++
		result.Results = append(result.Results, receipt)
	}

	result.Success = result.Failed == 0
	s.logger.Info("Bulk command dispatched",
		zap.String("command", string(command)),
		zap.Int("total", result.TotalDevices),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	return result
}

func (s *CommandService) resolve(ctx context.Context, caller Caller, deviceID string) (*entities.Device, error) {
	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repositories.ErrDeviceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load device %s: %w", deviceID, err)
	}
	if !caller.CanAccess(device.OrganizationID) {
		return nil, ErrForbidden
	}
	if device.DeliveryMethod != entities.DeliveryMethodMQTT {
		return nil, ErrUnsupportedDelivery
	}
	return device, nil
}

func (s *CommandService) publish(ctx context.Context, serial, label string, payload []byte) error {
	topic := s.topics.Command(serial)
	if err := s.publisher.Publish(ctx, topic, commandQoS, payload); err != nil {
		s.metrics.CommandSent(label, false)
		s.logger.Error("Failed to publish command",
			zap.String("topic", topic),
			zap.String("command", label),
			zap.Error(err))
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}

	s.metrics.CommandSent(label, true)
	s.logger.Info("Command sent",
		zap.String("topic", topic),
		zap.String("command", label))
	return nil
}
