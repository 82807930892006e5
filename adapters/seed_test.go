package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeedFile(t *testing.T) {
	ctx := context.Background()
	devices := NewMemoryDeviceRepository()
	employees := NewMemoryEmployeeRepository()

	path := writeSeed(t, `{
		"devices": [
			{"id": "dev-1", "serial_number": "SN-1", "organization_id": "org-1"},
			{"serial_number": "SN-2", "organization_id": "org-1", "status": "maintenance"}
		],
		"employees": [
			{"id": "emp-1", "organization_id": "org-1", "first_name": "Jean", "last_name": "Kouassi",
			 "badge_id": "BADGE-1", "is_active": true, "badge_active": true}
		]
	}`)

	stats, err := LoadSeedFile(ctx, path, devices, employees)
	if err != nil {
		t.Fatalf("LoadSeedFile failed: %v", err)
	}
	if stats.Devices != 2 || stats.Employees != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	device, err := devices.GetBySerialNumber(ctx, "SN-1")
	if err != nil {
		t.Fatalf("Seeded device missing: %v", err)
	}
	if device.ID != "dev-1" || device.Status != entities.DeviceStatusOffline || device.DeliveryMethod != entities.DeliveryMethodMQTT {
		t.Errorf("Unexpected seeded device %+v", device)
	}
	if second, _ := devices.GetBySerialNumber(ctx, "SN-2"); second == nil || second.Status != entities.DeviceStatusMaintenance {
		t.Errorf("Expected SN-2 in maintenance, got %+v", second)
	}

	employee, err := employees.GetByBadge(ctx, "BADGE-1")
	if err != nil {
		t.Fatalf("Seeded employee missing: %v", err)
	}
	if !employee.CanClockIn() || employee.DisplayName() != "Jean Kouassi" {
		t.Errorf("Unexpected seeded employee %+v", employee)
	}
}

func TestLoadSeedFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"devices": [`},
		{"device without organization", `{"devices": [{"serial_number": "SN-1"}]}`},
		{"duplicate serial", `{"devices": [
			{"serial_number": "SN-1", "organization_id": "org-1"},
			{"serial_number": "SN-1", "organization_id": "org-1"}
		]}`},
		{"null device", `{"devices": [null]}`},
		{"employee without organization", `{"employees": [{"badge_id": "BADGE-1"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSeed(t, tt.content)
			if _, err := LoadSeedFile(context.Background(), path, NewMemoryDeviceRepository(), NewMemoryEmployeeRepository()); err == nil {
				t.Error("Expected an error")
			}
		})
	}

	if _, err := LoadSeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"), NewMemoryDeviceRepository(), NewMemoryEmployeeRepository()); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
