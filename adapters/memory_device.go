package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

// MemoryDeviceRepository is an in-memory implementation of DeviceRepository.
// It backs single-node deployments and tests.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device mapping
	serials map[string]*entities.Device // serial_number -> device mapping
}

// NewMemoryDeviceRepository creates a new in-memory device repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		serials: make(map[string]*entities.Device),
	}
}

// Create implements DeviceRepository interface
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}

	if device.Status == "" {
		device.Status = entities.DeviceStatusOffline
	}
	if device.DeliveryMethod == "" {
		device.DeliveryMethod = entities.DeliveryMethodMQTT
	}
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.serials[device.SerialNumber]; exists {
		return errors.New("device with this serial number already exists")
	}

	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	deviceCopy := *device
	m.devices[device.ID] = &deviceCopy
	m.serials[device.SerialNumber] = &deviceCopy

	return nil
}

// GetByID implements DeviceRepository interface
func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[id]
	if !exists {
		return nil, repositories.ErrDeviceNotFound
	}

	// Return a copy to prevent external modifications
	deviceCopy := *device
	return &deviceCopy, nil
}

// GetBySerialNumber implements DeviceRepository interface
func (m *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.serials[serialNumber]
	if !exists {
		return nil, repositories.ErrDeviceNotFound
	}

	deviceCopy := *device
	return &deviceCopy, nil
}

// TouchLastSeen implements DeviceRepository interface
func (m *MemoryDeviceRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return m.mutate(id, func(d *entities.Device) {
		d.MarkOnline(at)
	})
}

// RecordHeartbeat implements DeviceRepository interface
func (m *MemoryDeviceRepository) RecordHeartbeat(ctx context.Context, id string, hb entities.Heartbeat, at time.Time) error {
	return m.mutate(id, func(d *entities.Device) {
		d.ApplyHeartbeat(hb, at)
	})
}

// MarkStaleOffline implements DeviceRepository interface
func (m *MemoryDeviceRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	marked := 0
	for _, device := range m.devices {
		if !device.IsStale(cutoff) {
			continue
		}
		if device.MarkOffline() {
			device.UpdatedAt = now
			marked++
		}
	}
	return marked, nil
}

// mutate applies fn to the stored device under the write lock.
// devices and serials share the same pointer so both views stay in sync.
func (m *MemoryDeviceRepository) mutate(id string, fn func(*entities.Device)) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	device, exists := m.devices[id]
	if !exists {
		return repositories.ErrDeviceNotFound
	}
	fn(device)
	device.UpdatedAt = time.Now()
	return nil
}
