package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AttendanceType is the direction of a badge scan
type AttendanceType string

const (
	AttendanceTypeIn  AttendanceType = "in"
	AttendanceTypeOut AttendanceType = "out"
)

// ParseAttendanceType accepts "in"/"out" in any case
func ParseAttendanceType(s string) (AttendanceType, error) {
	switch AttendanceType(strings.ToLower(strings.TrimSpace(s))) {
	case AttendanceTypeIn:
		return AttendanceTypeIn, nil
	case AttendanceTypeOut:
		return AttendanceTypeOut, nil
	}
	return "", fmt.Errorf("invalid attendance type %q", s)
}

// AttendanceRecord is one accepted badge scan. Records are never modified after creation.
type AttendanceRecord struct {
	ID         string                 `json:"id" bson:"_id"`
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp"`
	Type       AttendanceType         `json:"type" bson:"type"`
	EmployeeID string                 `json:"employee_id" bson:"employee_id"`
	DeviceID   *string                `json:"device_id" bson:"device_id"`
	Geo        *string                `json:"geo,omitempty" bson:"geo,omitempty"`
	ExtraData  map[string]interface{} `json:"extra_data,omitempty" bson:"extra_data,omitempty"`
	CreatedAt  time.Time              `json:"created_at" bson:"created_at"`
}

// Clone returns a copy that shares no pointers or maps with a. ExtraData values are
// copied one level deep.
func (a *AttendanceRecord) Clone() *AttendanceRecord {
	c := *a
	if a.DeviceID != nil {
		deviceID := *a.DeviceID
		c.DeviceID = &deviceID
	}
	if a.Geo != nil {
		geo := *a.Geo
		c.Geo = &geo
	}
	if a.ExtraData != nil {
		c.ExtraData = make(map[string]interface{}, len(a.ExtraData))
		for k, v := range a.ExtraData {
			c.ExtraData[k] = v
		}
	}
	return &c
}

func (a *AttendanceRecord) Validate() error {
	if a.EmployeeID == "" {
		return errors.New("employee id is required")
	}
	if a.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	if a.Type != AttendanceTypeIn && a.Type != AttendanceTypeOut {
		return errors.New("invalid attendance type")
	}
	return nil
}

// AttendanceEvent is an attendance record enriched for live subscribers
type AttendanceEvent struct {
	AttendanceRecord
	EmployeeName   string  `json:"employee_name"`
	OrganizationID string  `json:"organization_id"`
	DeviceSerial   *string `json:"device_serial,omitempty"`
}
