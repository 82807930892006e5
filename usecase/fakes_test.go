package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/adapters"
	"github.com/kuilinga/terminal-gateway/domain"
	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

var errStorage = errors.New("storage unavailable")

type publishedMessage struct {
	Topic   string
	QoS     byte
	Payload []byte
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	failFor   map[string]bool
	messages  []publishedMessage
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{connected: true, failFor: make(map[string]bool)}
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.failFor[topic] {
		return errors.New("broker refused publish")
	}
	p.messages = append(p.messages, publishedMessage{Topic: topic, QoS: qos, Payload: payload})
	return nil
}

func (p *fakePublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePublisher) published() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMessage(nil), p.messages...)
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	err    error
	events []*entities.AttendanceEvent
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, event *entities.AttendanceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// failingDevices wraps a device repository and fails the selected operations
type failingDevices struct {
	repositories.DeviceRepository
	failLookup bool
	failTouch  bool
}

func (f *failingDevices) GetBySerialNumber(ctx context.Context, serial string) (*entities.Device, error) {
	if f.failLookup {
		return nil, errStorage
	}
	return f.DeviceRepository.GetBySerialNumber(ctx, serial)
}

func (f *failingDevices) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if f.failTouch {
		return errStorage
	}
	return f.DeviceRepository.TouchLastSeen(ctx, id, at)
}

type failingAttendances struct {
	repositories.AttendanceRepository
}

func (f *failingAttendances) Create(ctx context.Context, record *entities.AttendanceRecord) error {
	return errStorage
}

type failingEmployees struct {
	repositories.EmployeeRepository
}

func (f *failingEmployees) GetByBadge(ctx context.Context, badgeID string) (*entities.Employee, error) {
	return nil, errStorage
}

type fixture struct {
	devices     *adapters.MemoryDeviceRepository
	employees   *adapters.MemoryEmployeeRepository
	attendances *adapters.MemoryAttendanceRepository
	publisher   *fakePublisher
	broadcaster *fakeBroadcaster
	topics      domain.Topics
	logger      *zap.Logger
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	devices := adapters.NewMemoryDeviceRepository()
	employees := adapters.NewMemoryEmployeeRepository()
	return &fixture{
		devices:     devices,
		employees:   employees,
		attendances: adapters.NewMemoryAttendanceRepository(employees, devices),
		publisher:   newFakePublisher(),
		broadcaster: &fakeBroadcaster{},
		topics:      domain.NewTopics(domain.DefaultTopicPrefix),
		logger:      zap.NewNop(),
	}
}

func (f *fixture) addDevice(t testing.TB, serial, org string) *entities.Device {
	t.Helper()
	device := &entities.Device{
		SerialNumber:   serial,
		OrganizationID: org,
		Status:         entities.DeviceStatusOffline,
		DeliveryMethod: entities.DeliveryMethodMQTT,
	}
	if err := f.devices.Create(context.Background(), device); err != nil {
		t.Fatalf("Failed to create device %s: %v", serial, err)
	}
	return device
}

func (f *fixture) addEmployee(t testing.TB, badge, first, last string, active, badgeActive bool) *entities.Employee {
	t.Helper()
	employee := &entities.Employee{
		OrganizationID: "org-1",
		FirstName:      first,
		LastName:       last,
		BadgeID:        badge,
		IsActive:       active,
		BadgeActive:    badgeActive,
	}
	if err := f.employees.Create(context.Background(), employee); err != nil {
		t.Fatalf("Failed to create employee %s: %v", badge, err)
	}
	return employee
}

func (f *fixture) attendanceService(devices repositories.DeviceRepository, employees repositories.EmployeeRepository, attendances repositories.AttendanceRepository) *AttendanceService {
	heartbeats := NewHeartbeatService(devices, f.logger)
	return NewAttendanceService(devices, employees, attendances, heartbeats, f.publisher, f.broadcaster, f.topics, nil, f.logger)
}
