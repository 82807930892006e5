package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")
)

// DeviceRepository defines data access methods for devices.
// Devices are provisioned elsewhere; this subsystem only reads them and writes liveness.
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	// TouchLastSeen marks the device online with last_seen_at = at
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
	// RecordHeartbeat marks the device online and writes only the telemetry present in hb
	RecordHeartbeat(ctx context.Context, id string, hb entities.Heartbeat, at time.Time) error
	// MarkStaleOffline moves every online device last seen before cutoff (or never) to offline
	// and returns how many were moved
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error)
}

// EmployeeRepository defines data access methods for employees
type EmployeeRepository interface {
	Create(ctx context.Context, employee *entities.Employee) error
	GetByBadge(ctx context.Context, badgeID string) (*entities.Employee, error)
}

// AttendanceRepository defines data access methods for attendance records
type AttendanceRepository interface {
	Create(ctx context.Context, record *entities.AttendanceRecord) error
	// GetEvent loads a record together with the employee and device details shown to live subscribers
	GetEvent(ctx context.Context, id string) (*entities.AttendanceEvent, error)
}
