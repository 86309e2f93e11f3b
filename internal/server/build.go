package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/morezero/channel-gateway/internal/config"
	"github.com/morezero/channel-gateway/pkg/bootstrap"
	"github.com/morezero/channel-gateway/pkg/db"
	"github.com/morezero/channel-gateway/pkg/provider"
	"github.com/morezero/channel-gateway/pkg/provider/memory"
	"github.com/morezero/channel-gateway/pkg/provider/modbus"
	"github.com/morezero/channel-gateway/pkg/registry"
)

const buildLogPrefix = "server:build"

// LoadRegistry builds the channel registry from the configured source. The
// database pool, when used, is closed before returning: the registry is a
// snapshot and is never reloaded.
func LoadRegistry(ctx context.Context, cfg *config.Config) (*registry.Registry, error) {
	switch cfg.ChannelSource {
	case config.SourceDatabase:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to database: %w", buildLogPrefix, err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			files, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				return nil, fmt.Errorf("%s - failed to load migrations: %w", buildLogPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, files); err != nil {
				return nil, fmt.Errorf("%s - failed to run migrations: %w", buildLogPrefix, err)
			}
		}

		reg, err := db.NewRepository(pool).LoadRegistry(ctx, cfg.ChannelSet)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load channels from database: %w", buildLogPrefix, err)
		}
		return reg, nil

	default:
		var paths []string
		if cfg.ChannelsFile != "" {
			paths = append(paths, cfg.ChannelsFile)
		}
		file, path, err := bootstrap.LoadChannelFile(paths...)
		if err != nil {
			return nil, fmt.Errorf("%s - failed to load channel file: %w", buildLogPrefix, err)
		}
		reg, err := bootstrap.BuildRegistry(file)
		if err != nil {
			return nil, fmt.Errorf("%s - invalid channel file %s: %w", buildLogPrefix, path, err)
		}
		slog.Info(fmt.Sprintf("%s - Loaded %d channels from %s", buildLogPrefix, reg.Len(), path))
		return reg, nil
	}
}

// BuildProvider creates the configured native provider. The returned closer
// is nil when the provider holds no resources.
func BuildProvider(cfg *config.Config) (provider.Provider, io.Closer, error) {
	switch cfg.Provider {
	case config.ProviderModbus:
		registers, err := modbus.LoadRegisterMap(cfg.ModbusRegisterFile)
		if err != nil {
			return nil, nil, fmt.Errorf("%s - %w", buildLogPrefix, err)
		}
		p, err := modbus.Dial(modbus.Options{
			Address:   cfg.ModbusAddress,
			SlaveID:   cfg.ModbusSlaveID,
			Timeout:   cfg.ModbusTimeout,
			Registers: registers,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%s - %w", buildLogPrefix, err)
		}
		return p, p, nil
	default:
		slog.Warn(fmt.Sprintf("%s - Using in-memory provider; values are not persisted", buildLogPrefix))
		return memory.New(), nil, nil
	}
}
