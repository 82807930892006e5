package entities

import (
	"testing"
	"time"
)

func TestDeviceIsStale(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cutoff := now.Add(-5 * time.Minute)
	recent := now.Add(-time.Minute)
	old := now.Add(-6 * time.Minute)

	tests := []struct {
		name     string
		status   DeviceStatus
		lastSeen *time.Time
		want     bool
	}{
		{"online recent", DeviceStatusOnline, &recent, false},
		{"online old", DeviceStatusOnline, &old, true},
		{"online never seen", DeviceStatusOnline, nil, true},
		{"offline old", DeviceStatusOffline, &old, false},
		{"maintenance old", DeviceStatusMaintenance, &old, false},
		{"online exactly at cutoff", DeviceStatusOnline, &cutoff, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Device{Status: tt.status, LastSeenAt: tt.lastSeen}
			if got := d.IsStale(cutoff); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeviceMarkOffline(t *testing.T) {
	d := &Device{Status: DeviceStatusOnline}
	if !d.MarkOffline() || d.Status != DeviceStatusOffline {
		t.Errorf("Expected online device to go offline, got %s", d.Status)
	}
	if d.MarkOffline() {
		t.Error("Offline device should not transition again")
	}

	m := &Device{Status: DeviceStatusMaintenance}
	if m.MarkOffline() || m.Status != DeviceStatusMaintenance {
		t.Errorf("Maintenance must be left alone, got %s", m.Status)
	}
}

func TestDeviceApplyHeartbeat(t *testing.T) {
	fw := "1.0.0"
	battery := 90
	d := &Device{Status: DeviceStatusOffline, FirmwareVersion: &fw, BatteryLevel: &battery}

	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	rssi := -60
	d.ApplyHeartbeat(Heartbeat{WifiRSSI: &rssi}, at)

	if d.Status != DeviceStatusOnline {
		t.Errorf("Expected online, got %s", d.Status)
	}
	if d.LastSeenAt == nil || !d.LastSeenAt.Equal(at) {
		t.Errorf("Expected last seen %v, got %v", at, d.LastSeenAt)
	}
	if *d.FirmwareVersion != "1.0.0" || *d.BatteryLevel != 90 {
		t.Error("Absent fields must keep their values")
	}
	if d.WifiRSSI == nil || *d.WifiRSSI != -60 {
		t.Errorf("Expected rssi -60, got %v", d.WifiRSSI)
	}

	rssi = -10
	if *d.WifiRSSI != -60 {
		t.Error("Device must not alias the heartbeat's fields")
	}
}

func TestDeviceValidate(t *testing.T) {
	valid := Device{SerialNumber: "SN-1", OrganizationID: "org-1", Status: DeviceStatusOffline, DeliveryMethod: DeliveryMethodMQTT}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid device, got %v", err)
	}

	missingSerial := valid
	missingSerial.SerialNumber = ""
	if missingSerial.Validate() == nil {
		t.Error("Expected error for missing serial number")
	}

	badStatus := valid
	badStatus.Status = "sleeping"
	if badStatus.Validate() == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestEmployeeCanClockIn(t *testing.T) {
	tests := []struct {
		active, badgeActive, want bool
	}{
		{true, true, true},
		{false, true, false},
		{true, false, false},
		{false, false, false},
	}
	for _, tt := range tests {
		e := Employee{IsActive: tt.active, BadgeActive: tt.badgeActive}
		if got := e.CanClockIn(); got != tt.want {
			t.Errorf("CanClockIn(active=%v, badge=%v) = %v, want %v", tt.active, tt.badgeActive, got, tt.want)
		}
	}

	e := Employee{FirstName: "Jean", LastName: "Kouassi"}
	if e.DisplayName() != "Jean Kouassi" {
		t.Errorf("Unexpected display name %q", e.DisplayName())
	}
}

func TestParseAttendanceType(t *testing.T) {
	if typ, err := ParseAttendanceType("OUT"); err != nil || typ != AttendanceTypeOut {
		t.Errorf("Expected out, got %s (%v)", typ, err)
	}
	if _, err := ParseAttendanceType("lunch"); err == nil {
		t.Error("Expected error for unknown type")
	}
}

func TestHeartbeatValidate(t *testing.T) {
	over := 101
	positive := 3
	if (Heartbeat{BatteryLevel: &over}).Validate() == nil {
		t.Error("Expected error for battery over 100")
	}
	if (Heartbeat{WifiRSSI: &positive}).Validate() == nil {
		t.Error("Expected error for positive rssi")
	}
	if err := (Heartbeat{}).Validate(); err != nil {
		t.Errorf("Empty heartbeat should be valid, got %v", err)
	}
}

func TestAttendanceRecordClone(t *testing.T) {
	deviceID := "dev-1"
	geo := "5.35,-4.00"
	record := &AttendanceRecord{
		ID:         "att-1",
		Timestamp:  time.Now(),
		Type:       AttendanceTypeIn,
		EmployeeID: "emp-1",
		DeviceID:   &deviceID,
		Geo:        &geo,
		ExtraData:  map[string]interface{}{"badge_id": "B1"},
	}

	clone := record.Clone()
	deviceID = "dev-2"
	geo = ""
	record.ExtraData["badge_id"] = "B2"

	if *clone.DeviceID != "dev-1" || *clone.Geo != "5.35,-4.00" || clone.ExtraData["badge_id"] != "B1" {
		t.Errorf("Clone shares state with the original: %+v", clone)
	}
	if clone.ID != "att-1" || clone.EmployeeID != "emp-1" {
		t.Errorf("Clone lost scalar fields: %+v", clone)
	}

	if bare := (&AttendanceRecord{ID: "att-2"}).Clone(); bare.DeviceID != nil || bare.ExtraData != nil {
		t.Errorf("Clone of a bare record should keep nil fields, got %+v", bare)
	}
}
