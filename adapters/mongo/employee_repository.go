package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

type EmployeeRepository struct {
	collection *mongo.Collection
}

// NewEmployeeRepository creates a new MongoDB employee repository
func NewEmployeeRepository(db *mongo.Database) *EmployeeRepository {
	return &EmployeeRepository{
		collection: db.Collection(employeesCollection),
	}
}

// Create implements repositories.EmployeeRepository
func (r *EmployeeRepository) Create(ctx context.Context, employee *entities.Employee) error {
	if employee == nil {
		return errors.New("employee cannot be nil")
	}
	if employee.OrganizationID == "" {
		return errors.New("organization id is required")
	}
	if employee.ID == "" {
		employee.ID = uuid.New().String()
	}

	if _, err := r.collection.InsertOne(ctx, employee); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("employee with badge %s already exists", employee.BadgeID)
		}
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

// GetByBadge implements repositories.EmployeeRepository
func (r *EmployeeRepository) GetByBadge(ctx context.Context, badgeID string) (*entities.Employee, error) {
	if badgeID == "" {
		return nil, errors.New("badge ID cannot be empty")
	}
	return r.findOne(ctx, bson.M{"badge_id": badgeID})
}

// GetByID returns the employee with the given id
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*entities.Employee, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *EmployeeRepository) findOne(ctx context.Context, filter bson.M) (*entities.Employee, error) {
	var employee entities.Employee
	if err := r.collection.FindOne(ctx, filter).Decode(&employee); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &employee, nil
}
