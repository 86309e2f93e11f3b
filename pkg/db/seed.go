package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/channel-gateway/pkg/bootstrap"
	"github.com/morezero/channel-gateway/pkg/registry"
)

const seedLogPrefix = "db:seed"

// SeedResult summarizes a seed run.
type SeedResult struct {
	SetName  string
	Upserted int
	Pruned   int64
}

// SeedChannelFile writes a parsed channel file into the database as one
// channel set. Provider defaults are merged into each channel before storing.
// Channels previously stored for the set but absent from the file are removed.
// The whole run is one transaction.
func SeedChannelFile(ctx context.Context, repo *Repository, f *bootstrap.ChannelFile) (*SeedResult, error) {
	if f == nil || f.Name == "" {
		return nil, fmt.Errorf("%s - channel file has no name", seedLogPrefix)
	}
	channels := f.RegistryChannels()

	// Build once to reject duplicates and bad patterns before touching the database.
	if _, err := registry.NewRegistry(registry.NewRegistryParams{Name: f.Name, Channels: channels}); err != nil {
		return nil, fmt.Errorf("%s - invalid channel file: %w", seedLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Seeding set %s with %d channels", seedLogPrefix, f.Name, len(channels)))

	result := &SeedResult{SetName: f.Name}
	err := repo.InTx(ctx, func(tx *Repository) error {
		if _, err := tx.UpsertChannelSet(ctx, f.Name, f.Description, f.SchemaVersion); err != nil {
			return err
		}
		names := make([]string, 0, len(channels))
		for i, ch := range channels {
			_, err := tx.UpsertChannel(ctx, UpsertChannelParams{
				SetName:  f.Name,
				Name:     ch.Name,
				Position: i,
				Getter:   ch.Getter,
				Setter:   ch.Setter,
			})
			if err != nil {
				return err
			}
			names = append(names, ch.Name)
			result.Upserted++
		}
		pruned, err := tx.PruneChannels(ctx, f.Name, names)
		if err != nil {
			return err
		}
		result.Pruned = pruned
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s - seed %s: %w", seedLogPrefix, f.Name, err)
	}

	slog.Info(fmt.Sprintf("%s - Seeded %s: upserted=%d pruned=%d", seedLogPrefix, f.Name, result.Upserted, result.Pruned))
	return result, nil
}
