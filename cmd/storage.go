package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/adapters"
	mongostore "github.com/kuilinga/terminal-gateway/adapters/mongo"
	"github.com/kuilinga/terminal-gateway/domain/repositories"
	"github.com/kuilinga/terminal-gateway/internal/config"
)

// storage bundles the repositories of the selected backend
type storage struct {
	devices     repositories.DeviceRepository
	employees   repositories.EmployeeRepository
	attendances repositories.AttendanceRepository
	close       func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*storage, error) {
	if cfg.Backend == config.StorageMongo {
		client, err := mongostore.NewClient(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return &storage{
			devices:     mongostore.NewDeviceRepository(client.Database),
			employees:   mongostore.NewEmployeeRepository(client.Database),
			attendances: mongostore.NewAttendanceRepository(client.Database),
			close:       client.Close,
		}, nil
	}

	devices := adapters.NewMemoryDeviceRepository()
	employees := adapters.NewMemoryEmployeeRepository()
	if cfg.SeedFile != "" {
		stats, err := adapters.LoadSeedFile(ctx, cfg.SeedFile, devices, employees)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory storage: %w", err)
		}
		logger.Info("Memory storage seeded",
			zap.String("file", cfg.SeedFile),
			zap.Int("devices", stats.Devices),
			zap.Int("employees", stats.Employees))
	} else {
		logger.Warn("Memory storage started empty, every terminal will be treated as unknown")
	}

	return &storage{
		devices:     devices,
		employees:   employees,
		attendances: adapters.NewMemoryAttendanceRepository(employees, devices),
		close:       func(context.Context) error { return nil },
	}, nil
}
