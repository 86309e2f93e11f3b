package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearChannels removes every channel set and channel. The schema is kept.
func ClearChannels(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing channel tables", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE channels, channel_sets CASCADE`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Channel tables cleared", clearLogPrefix))
	return nil
}
