package entities

import (
	"errors"
	"time"
)

// DeviceStatus represents the connectivity state of a terminal
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

// DeliveryMethod selects how a terminal exchanges messages with the backend
type DeliveryMethod string

const (
	DeliveryMethodHTTP DeliveryMethod = "http"
	DeliveryMethodMQTT DeliveryMethod = "mqtt"
)

// Device represents a badge terminal
type Device struct {
	ID              string         `json:"id" bson:"_id"`
	SerialNumber    string         `json:"serial_number" bson:"serial_number"`
	OrganizationID  string         `json:"organization_id" bson:"organization_id"`
	SiteID          *string        `json:"site_id,omitempty" bson:"site_id,omitempty"`
	Status          DeviceStatus   `json:"status" bson:"status"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method" bson:"delivery_method"`
	LastSeenAt      *time.Time     `json:"last_seen_at" bson:"last_seen_at"`
	FirmwareVersion *string        `json:"firmware_version,omitempty" bson:"firmware_version,omitempty"`
	BatteryLevel    *int           `json:"battery_level,omitempty" bson:"battery_level,omitempty"`
	WifiRSSI        *int           `json:"wifi_rssi,omitempty" bson:"wifi_rssi,omitempty"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
}

// MarkOnline records contact from the terminal at the given time
func (d *Device) MarkOnline(at time.Time) {
	d.Status = DeviceStatusOnline
	d.LastSeenAt = &at
}

// MarkOffline moves an online terminal to offline. Other states are left alone.
func (d *Device) MarkOffline() bool {
	if d.Status != DeviceStatusOnline {
		return false
	}
	d.Status = DeviceStatusOffline
	return true
}

// ApplyHeartbeat marks the device online and copies the telemetry fields present in hb.
func (d *Device) ApplyHeartbeat(hb Heartbeat, at time.Time) {
	d.MarkOnline(at)
	if hb.FirmwareVersion != nil {
		v := *hb.FirmwareVersion
		d.FirmwareVersion = &v
	}
	if hb.BatteryLevel != nil {
		v := *hb.BatteryLevel
		d.BatteryLevel = &v
	}
	if hb.WifiRSSI != nil {
		v := *hb.WifiRSSI
		d.WifiRSSI = &v
	}
}

// IsStale reports whether an online device has been silent since before cutoff.
func (d *Device) IsStale(cutoff time.Time) bool {
	if d.Status != DeviceStatusOnline {
		return false
	}
	return d.LastSeenAt == nil || d.LastSeenAt.Before(cutoff)
}

// Validate checks the fields required to store a device
func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.OrganizationID == "" {
		return errors.New("organization id is required")
	}
	switch d.Status {
	case DeviceStatusOnline, DeviceStatusOffline, DeviceStatusMaintenance:
	default:
		return errors.New("invalid device status")
	}
	switch d.DeliveryMethod {
	case DeliveryMethodHTTP, DeliveryMethodMQTT:
	default:
		return errors.New("invalid delivery method")
	}
	return nil
}
