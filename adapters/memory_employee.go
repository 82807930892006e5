package adapters

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kuilinga/terminal-gateway/domain/entities"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
)

// MemoryEmployeeRepository is an in-memory implementation of EmployeeRepository
type MemoryEmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]*entities.Employee // id -> employee
	badges    map[string]*entities.Employee // badge_id -> employee
}

func NewMemoryEmployeeRepository() *MemoryEmployeeRepository {
	return &MemoryEmployeeRepository{
		employees: make(map[string]*entities.Employee),
		badges:    make(map[string]*entities.Employee),
	}
}

// Create implements EmployeeRepository interface
func (m *MemoryEmployeeRepository) Create(ctx context.Context, employee *entities.Employee) error {
	if employee == nil {
		return errors.New("employee cannot be nil")
	}
	if employee.OrganizationID == "" {
		return errors.New("organization id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if employee.BadgeID != "" {
		if _, exists := m.badges[employee.BadgeID]; exists {
			return errors.New("employee with this badge already exists")
		}
	}
	if employee.ID == "" {
		employee.ID = uuid.New().String()
	}

	employeeCopy := *employee
	m.employees[employee.ID] = &employeeCopy
	if employee.BadgeID != "" {
		m.badges[employee.BadgeID] = &employeeCopy
	}
	return nil
}

// GetByBadge implements EmployeeRepository interface
func (m *MemoryEmployeeRepository) GetByBadge(ctx context.Context, badgeID string) (*entities.Employee, error) {
	if badgeID == "" {
		return nil, errors.New("badge ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	employee, exists := m.badges[badgeID]
	if !exists {
		return nil, repositories.ErrEmployeeNotFound
	}
	employeeCopy := *employee
	return &employeeCopy, nil
}

// GetByID returns the employee with the given id
func (m *MemoryEmployeeRepository) GetByID(ctx context.Context, id string) (*entities.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	employee, exists := m.employees[id]
	if !exists {
		return nil, repositories.ErrEmployeeNotFound
	}
	employeeCopy := *employee
	return &employeeCopy, nil
}
