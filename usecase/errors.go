package usecase

import "errors"

var (
	// ErrUnknownDevice: the serial number on the topic matches no provisioned terminal
	ErrUnknownDevice = errors.New("unknown device")
	// ErrTransportUnavailable: the broker connection is down
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrForbidden: the caller may not act on a device of another organization
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownCommand: the command has no wire code
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUnsupportedDelivery: the terminal is not reachable over MQTT
	ErrUnsupportedDelivery = errors.New("device does not use mqtt delivery")
	// ErrPublishFailed: the broker did not accept the publish
	ErrPublishFailed = errors.New("publish failed")
	// ErrInvalidCode: a raw code is not 0x followed by six hex digits
	ErrInvalidCode = errors.New("invalid command code")
)
