package entities

import (
	"errors"
	"time"
)

// Heartbeat is the telemetry a terminal reports on its status topic.
// Nil fields were absent from the message.
type Heartbeat struct {
	FirmwareVersion *string `json:"firmware_version,omitempty"`
	BatteryLevel    *int    `json:"battery_level,omitempty"`
	WifiRSSI        *int    `json:"wifi_rssi,omitempty"`
}

func (h Heartbeat) Validate() error {
	if h.BatteryLevel != nil && (*h.BatteryLevel < 0 || *h.BatteryLevel > 100) {
		return errors.New("battery_level must be between 0 and 100")
	}
	if h.WifiRSSI != nil && *h.WifiRSSI > 0 {
		return errors.New("wifi_rssi must be <= 0")
	}
	return nil
}

// ScanRequest is a badge scan reported on the attendance topic
type ScanRequest struct {
	BadgeID   string
	Timestamp *time.Time
	Type      *AttendanceType
}
