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

type DeviceRepository struct {
	collection *mongo.Collection
}

// NewDeviceRepository creates a new MongoDB device repository
func NewDeviceRepository(db *mongo.Database) *DeviceRepository {
	return &DeviceRepository{
		collection: db.Collection(devicesCollection),
	}
}

// Create implements repositories.DeviceRepository
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
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
	if device.ID == "" {
		device.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, device); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("device with serial number %s already exists", device.SerialNumber)
		}
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

// GetByID implements repositories.DeviceRepository
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetBySerialNumber implements repositories.DeviceRepository
func (r *DeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}
	return r.findOne(ctx, bson.M{"serial_number": serialNumber})
}

// TouchLastSeen implements repositories.DeviceRepository
func (r *DeviceRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"status":       entities.DeviceStatusOnline,
		"last_seen_at": at,
		"updated_at":   time.Now().UTC(),
	})
}

// RecordHeartbeat implements repositories.DeviceRepository. Absent telemetry
// fields are left out of the $set so stored values survive.
func (r *DeviceRepository) RecordHeartbeat(ctx context.Context, id string, hb entities.Heartbeat, at time.Time) error {
	set := bson.M{
		"status":       entities.DeviceStatusOnline,
		"last_seen_at": at,
		"updated_at":   time.Now().UTC(),
	}
	if hb.FirmwareVersion != nil {
		set["firmware_version"] = *hb.FirmwareVersion
	}
	if hb.BatteryLevel != nil {
		set["battery_level"] = *hb.BatteryLevel
	}
	if hb.WifiRSSI != nil {
		set["wifi_rssi"] = *hb.WifiRSSI
	}
	return r.updateOne(ctx, id, set)
}

// MarkStaleOffline implements repositories.DeviceRepository
func (r *DeviceRepository) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int, error) {
	filter := bson.M{
		"status": entities.DeviceStatusOnline,
		"$or": bson.A{
			bson.M{"last_seen_at": nil},
			bson.M{"last_seen_at": bson.M{"$lt": cutoff}},
		},
	}
	update := bson.M{"$set": bson.M{
		"status":     entities.DeviceStatusOffline,
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale devices offline: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (r *DeviceRepository) findOne(ctx context.Context, filter bson.M) (*entities.Device, error) {
	var device entities.Device
	if err := r.collection.FindOne(ctx, filter).Decode(&device); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

func (r *DeviceRepository) updateOne(ctx context.Context, id string, set bson.M) error {
	if id == "" {
		return errors.New("device ID cannot be empty")
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update device %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrDeviceNotFound
	}
	return nil
}
