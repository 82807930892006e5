package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

type AttendanceRepository struct {
	collection *mongo.Collection
	employees  *EmployeeRepository
	devices    *DeviceRepository
}

// NewAttendanceRepository creates a new MongoDB attendance repository
func NewAttendanceRepository(db *mongo.Database) *AttendanceRepository {
	return &AttendanceRepository{
		collection: db.Collection(attendancesCollection),
		employees:  NewEmployeeRepository(db),
		devices:    NewDeviceRepository(db),
	}
}

// Create implements repositories.AttendanceRepository
func (r *AttendanceRepository) Create(ctx context.Context, record *entities.AttendanceRecord) error {
	if record == nil {
		return errors.New("attendance record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	return nil
}

// GetEvent implements repositories.AttendanceRepository
func (r *AttendanceRepository) GetEvent(ctx context.Context, id string) (*entities.AttendanceEvent, error) {
	var record entities.AttendanceRecord
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrAttendanceNotFound
		}
		return nil, fmt.Errorf("failed to get attendance %s: %w", id, err)
	}

	employee, err := r.employees.GetByID(ctx, record.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load employee %s: %w", record.EmployeeID, err)
	}

	event := &entities.AttendanceEvent{
		AttendanceRecord: record,
		EmployeeName:     employee.DisplayName(),
		OrganizationID:   employee.OrganizationID,
	}

	if record.DeviceID != nil {
		device, err := r.devices.GetByID(ctx, *record.DeviceID)
		switch {
		case err == nil:
			serial := device.SerialNumber
			event.DeviceSerial = &serial
		case !errors.Is(err, repositories.ErrDeviceNotFound):
			return nil, err
		}
	}
	return event, nil
}
