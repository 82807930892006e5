package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

// MemoryAttendanceRepository is an in-memory implementation of AttendanceRepository.
// It resolves employee and device details from the sibling memory repositories.
type MemoryAttendanceRepository struct {
	mu        sync.RWMutex
	records   map[string]*entities.AttendanceRecord
	order     []string
	employees *MemoryEmployeeRepository
	devices   *MemoryDeviceRepository
}

func NewMemoryAttendanceRepository(employees *MemoryEmployeeRepository, devices *MemoryDeviceRepository) *MemoryAttendanceRepository {
	return &MemoryAttendanceRepository{
		records:   make(map[string]*entities.AttendanceRecord),
		employees: employees,
		devices:   devices,
	}
}

// Create implements AttendanceRepository interface
func (m *MemoryAttendanceRepository) Create(ctx context.Context, record *entities.AttendanceRecord) error {
	if record == nil {
		return errors.New("attendance record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, exists := m.records[record.ID]; exists {
		return fmt.Errorf("attendance record %s already exists", record.ID)
	}
	record.CreatedAt = time.Now()

	m.records[record.ID] = record.Clone()
	m.order = append(m.order, record.ID)
	return nil
}

// GetEvent implements AttendanceRepository interface
func (m *MemoryAttendanceRepository) GetEvent(ctx context.Context, id string) (*entities.AttendanceEvent, error) {
	m.mu.RLock()
	record, exists := m.records[id]
	m.mu.RUnlock()
	if !exists {
		return nil, repositories.ErrAttendanceNotFound
	}

	event := &entities.AttendanceEvent{AttendanceRecord: *record.Clone()}

	employee, err := m.employees.GetByID(ctx, record.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee %s: %w", record.EmployeeID, err)
	}
	event.EmployeeName = employee.DisplayName()
	event.OrganizationID = employee.OrganizationID

	if record.DeviceID != nil {
		device, err := m.devices.GetByID(ctx, *record.DeviceID)
		if err != nil && !errors.Is(err, repositories.ErrDeviceNotFound) {
			return nil, err
		}
		if device != nil {
			serial := device.SerialNumber
			event.DeviceSerial = &serial
		}
	}
	return event, nil
}

// List returns all records in insertion order
func (m *MemoryAttendanceRepository) List(ctx context.Context) []*entities.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.AttendanceRecord, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.records[id].Clone())
	}
	return result
}
