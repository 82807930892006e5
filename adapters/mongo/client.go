package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/internal/config"
)

const (
	devicesCollection     = "devices"
	employeesCollection   = "employees"
	attendancesCollection = "attendances"
)

// Client wraps the MongoDB client and database
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient creates a new MongoDB client connection
func NewClient(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Client, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(20).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB",
		zap.String("database", cfg.MongoDatabase))

	return &Client{
		Client:   client,
		Database: client.Database(cfg.MongoDatabase),
		logger:   logger,
	}, nil
}

// EnsureIndexes creates the lookup indexes the gateway relies on
func (c *Client) EnsureIndexes(ctx context.Context) error {
	// Employees without a badge share the empty badge id
	assignedBadge := options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{"badge_id": bson.M{"$gt": ""}})

	indexes := map[string][]mongo.IndexModel{
		devicesCollection: {
			{Keys: bson.D{{Key: "serial_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_seen_at", Value: 1}}},
		},
		employeesCollection: {
			{Keys: bson.D{{Key: "badge_id", Value: 1}}, Options: assignedBadge},
		},
		attendancesCollection: {
			{Keys: bson.D{{Key: "employee_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := c.Database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
