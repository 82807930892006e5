package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kuilinga/terminal-gateway/domain/entities"
)

// Seed is the content of a seed file for the in-memory backend
type Seed struct {
	Devices   []*entities.Device   `json:"devices"`
	Employees []*entities.Employee `json:"employees"`
}

// SeedStats reports how many entities a seed registered
type SeedStats struct {
	Devices   int
	Employees int
}

// LoadSeedFile reads a JSON seed file and registers its devices and employees
func LoadSeedFile(ctx context.Context, path string, devices *MemoryDeviceRepository, employees *MemoryEmployeeRepository) (SeedStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedStats{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return SeedStats{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed.Apply(ctx, devices, employees)
}

// Apply registers the seed entities, stopping at the first invalid one
func (s Seed) Apply(ctx context.Context, devices *MemoryDeviceRepository, employees *MemoryEmployeeRepository) (SeedStats, error) {
	var stats SeedStats
	for i, device := range s.Devices {
		if device == nil {
			return stats, fmt.Errorf("seed device %d is empty", i)
		}
		if err := devices.Create(ctx, device); err != nil {
			return stats, fmt.Errorf("seed device %q: %w", device.SerialNumber, err)
		}
		stats.Devices++
	}
	for i, employee := range s.Employees {
		if employee == nil {
			return stats, fmt.Errorf("seed employee %d is empty", i)
		}
		if err := employees.Create(ctx, employee); err != nil {
			return stats, fmt.Errorf("seed employee %q: %w", employee.BadgeID, err)
		}
		stats.Employees++
	}
	return stats, nil
}
