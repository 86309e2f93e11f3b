// Package main is the entrypoint for the channel gateway (binary name "gateway").
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/channel-gateway/internal/config"
	"github.com/morezero/channel-gateway/internal/server"
	"github.com/morezero/channel-gateway/pkg/bootstrap"
	"github.com/morezero/channel-gateway/pkg/db"
	"github.com/morezero/channel-gateway/pkg/registry"
)

const usage = `Usage: gateway [command]
       gateway serve              Start the gateway (COMMS, HTTP, channel dispatch).
       gateway migrate up         Create the channel tables.
       gateway migrate down       Drop the channel tables.
       gateway migrate status     Show migration status.
       gateway ensure-db [name]   Create database if missing (default name: gateway_test). Uses DATABASE_URL host/user.
       gateway clear              Delete every stored channel set; schema is preserved.
       gateway seed [file]        Store a channels.yml file in the database, replacing the set of the same name.
       gateway channels [file]    Validate a channels.yml file and list its channels.

Commands:
  serve            (default) Start the channel gateway.
  migrate up       Run database migrations only.
  migrate down     Drop the channel tables.
  migrate status   Show current migration status.
  ensure-db [name] Create database (e.g. gateway_test) on same host as DATABASE_URL; then run tests with that URL.
  clear            Truncate channel data; schema preserved.
  seed [file]      Seed from a channel file (default GATEWAY_CHANNELS_FILE, then config/channels.yml).
  channels [file]  Print the channels a file defines without starting anything.

Environment: CHANNEL_SOURCE (file|database), GATEWAY_CHANNELS_FILE, DATABASE_URL, MIGRATION_PATH,
PROVIDER (memory|modbus), COMMS_URL, GATEWAY_HTTP_ADDR. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("gateway migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("gateway migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("gateway migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("gateway migrate down: %v", err)
			}
		default:
			log.Fatalf("gateway migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		if err := runClear(); err != nil {
			log.Fatalf("gateway clear: %v", err)
		}
		return
	case "seed":
		if err := runSeed(argAt(args, 1)); err != nil {
			log.Fatalf("gateway seed: %v", err)
		}
		return
	case "ensure-db":
		dbName := "gateway_test"
		if name := argAt(args, 1); name != "" {
			dbName = name
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("gateway ensure-db: %v", err)
		}
		return
	case "channels":
		if err := runChannels(os.Stdout, argAt(args, 1)); err != nil {
			log.Fatalf("gateway channels: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("gateway: %v", err)
	}
}

func argAt(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

// withPool loads config, validates it for database use and hands fn a pool.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		files, err := db.LoadMigrationFiles(cfg.MigrationPath)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		if err := db.RunMigrations(ctx, pool, files); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

func runMigrateStatus() error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationStatus(ctx, pool, cfg.MigrationPath, os.Stdout)
	})
}

func runMigrateDown() error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		return db.MigrationDown(ctx, pool)
	})
}

func runClear() error {
	return withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
		if err := db.ClearChannels(ctx, pool); err != nil {
			return fmt.Errorf("clear channels: %w", err)
		}
		return nil
	})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	targetURL, err := db.WithDatabase(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := db.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

func runSeed(fileOverride string) error {
	return withPool(func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
		file, path, err := bootstrap.LoadChannelFile(fileOverride, cfg.ChannelsFile)
		if err != nil {
			return fmt.Errorf("load channel file: %w", err)
		}
		res, err := db.SeedChannelFile(ctx, db.NewRepository(pool), file)
		if err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		fmt.Printf("Seeded channel set %q from %s: %d channels stored, %d removed.\n",
			res.SetName, path, res.Upserted, res.Pruned)
		return nil
	})
}

func runChannels(w io.Writer, fileOverride string) error {
	file, path, err := bootstrap.LoadChannelFile(fileOverride)
	if err != nil {
		return err
	}
	reg, err := bootstrap.BuildRegistry(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return printChannels(w, path, reg)
}

func printChannels(w io.Writer, path string, reg *registry.Registry) error {
	fmt.Fprintf(w, "%s (%s): %d channels\n", reg.Name(), path, reg.Len())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tGETTER\tSETTER")
	for page := 1; ; page++ {
		out := reg.List(&registry.ListInput{Page: page, Limit: 500})
		for _, c := range out.Channels {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Channel, c.GetterType, c.SetterType)
		}
		if page >= out.Pagination.TotalPages {
			break
		}
	}
	return tw.Flush()
}
