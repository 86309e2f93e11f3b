package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/channel-gateway/pkg/registry"
)

const repoLogPrefix = "db:repository"

// ErrNotFound is returned when a channel set or channel does not exist.
var ErrNotFound = errors.New("not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides database access for channel definitions.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

// InTx runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(*Repository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s - begin tx: %w", repoLogPrefix, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{pool: r.pool, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s - commit: %w", repoLogPrefix, err)
	}
	return nil
}

// =========================================================================
// CHANNEL SETS
// =========================================================================

// UpsertChannelSet creates or updates a channel set.
func (r *Repository) UpsertChannelSet(ctx context.Context, name, description, schemaVersion string) (*ChannelSet, error) {
	slog.Info(fmt.Sprintf("%s - UpsertChannelSet name=%s", repoLogPrefix, name))
	if schemaVersion == "" {
		schemaVersion = "1.0.0"
	}

	var s ChannelSet
	err := r.q.QueryRow(ctx,
		`INSERT INTO channel_sets (name, description, schema_version)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET
		   description = EXCLUDED.description,
		   schema_version = EXCLUDED.schema_version,
		   modified = now()
		 RETURNING name, description, schema_version, created, modified`,
		name, description, schemaVersion).Scan(&s.Name, &s.Description, &s.SchemaVersion, &s.Created, &s.Modified)
	if err != nil {
		return nil, fmt.Errorf("%s - upsert channel set %s: %w", repoLogPrefix, name, err)
	}
	return &s, nil
}

// GetChannelSet returns the named channel set, or ErrNotFound.
func (r *Repository) GetChannelSet(ctx context.Context, name string) (*ChannelSet, error) {
	var s ChannelSet
	err := r.q.QueryRow(ctx,
		`SELECT name, description, schema_version, created, modified
		 FROM channel_sets WHERE name = $1`, name).Scan(&s.Name, &s.Description, &s.SchemaVersion, &s.Created, &s.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s - channel set %q: %w", repoLogPrefix, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - get channel set %s: %w", repoLogPrefix, name, err)
	}
	return &s, nil
}

// ListChannelSets returns every channel set ordered by name.
func (r *Repository) ListChannelSets(ctx context.Context) ([]ChannelSet, error) {
	rows, err := r.q.Query(ctx,
		`SELECT name, description, schema_version, created, modified
		 FROM channel_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s - list channel sets: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []ChannelSet
	for rows.Next() {
		var s ChannelSet
		if err := rows.Scan(&s.Name, &s.Description, &s.SchemaVersion, &s.Created, &s.Modified); err != nil {
			return nil, fmt.Errorf("%s - scan channel set: %w", repoLogPrefix, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// =========================================================================
// CHANNELS
// =========================================================================

// UpsertChannelParams holds parameters for UpsertChannel.
type UpsertChannelParams struct {
	SetName  string
	Name     string
	Position int
	Getter   *registry.OperationConfig
	Setter   *registry.OperationConfig
}

// UpsertChannel creates or replaces one channel definition. Revision is
// bumped on update.
func (r *Repository) UpsertChannel(ctx context.Context, params UpsertChannelParams) (*ChannelRow, error) {
	slog.Debug(fmt.Sprintf("%s - UpsertChannel set=%s name=%s", repoLogPrefix, params.SetName, params.Name))

	getter, err := encodeConfig(params.Getter)
	if err != nil {
		return nil, fmt.Errorf("%s - encode getter for %s: %w", repoLogPrefix, params.Name, err)
	}
	setter, err := encodeConfig(params.Setter)
	if err != nil {
		return nil, fmt.Errorf("%s - encode setter for %s: %w", repoLogPrefix, params.Name, err)
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO channels (id, set_name, name, position, getter, setter)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (set_name, name) DO UPDATE SET
		   position = EXCLUDED.position,
		   getter = EXCLUDED.getter,
		   setter = EXCLUDED.setter,
		   revision = channels.revision + 1,
		   modified = now()
		 RETURNING id, set_name, name, position, getter, setter, revision, created, modified`,
		uuid.NewString(), params.SetName, params.Name, params.Position, getter, setter)

	return scanChannel(row)
}

// ListChannels returns the channels of a set in declaration order.
func (r *Repository) ListChannels(ctx context.Context, setName string) ([]ChannelRow, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, set_name, name, position, getter, setter, revision, created, modified
		 FROM channels WHERE set_name = $1
		 ORDER BY position, name`, setName)
	if err != nil {
		return nil, fmt.Errorf("%s - list channels for %s: %w", repoLogPrefix, setName, err)
	}
	defer rows.Close()

	var out []ChannelRow
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

// DeleteChannel removes one channel from a set.
func (r *Repository) DeleteChannel(ctx context.Context, setName, name string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM channels WHERE set_name = $1 AND name = $2`, setName, name)
	if err != nil {
		return fmt.Errorf("%s - delete channel %s: %w", repoLogPrefix, name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s - channel %q in %q: %w", repoLogPrefix, name, setName, ErrNotFound)
	}
	return nil
}

// PruneChannels deletes channels of a set whose names are not in keep.
func (r *Repository) PruneChannels(ctx context.Context, setName string, keep []string) (int64, error) {
	tag, err := r.q.Exec(ctx,
		`DELETE FROM channels WHERE set_name = $1 AND NOT (name = ANY($2))`, setName, keep)
	if err != nil {
		return 0, fmt.Errorf("%s - prune channels for %s: %w", repoLogPrefix, setName, err)
	}
	return tag.RowsAffected(), nil
}

// LoadRegistry builds a registry snapshot from a stored channel set. An empty
// setName selects the only set present; more than one set is an error.
func (r *Repository) LoadRegistry(ctx context.Context, setName string) (*registry.Registry, error) {
	if setName == "" {
		sets, err := r.ListChannelSets(ctx)
		if err != nil {
			return nil, err
		}
		switch len(sets) {
		case 0:
			return nil, fmt.Errorf("%s - no channel sets stored (run 'gateway seed'): %w", repoLogPrefix, ErrNotFound)
		case 1:
			setName = sets[0].Name
		default:
			return nil, fmt.Errorf("%s - %d channel sets stored; choose one with SERVICE_NAME", repoLogPrefix, len(sets))
		}
	}

	set, err := r.GetChannelSet(ctx, setName)
	if err != nil {
		return nil, err
	}
	rows, err := r.ListChannels(ctx, setName)
	if err != nil {
		return nil, err
	}

	channels := make([]registry.Channel, 0, len(rows))
	for _, row := range rows {
		channels = append(channels, row.Channel())
	}
	reg, err := registry.NewRegistry(registry.NewRegistryParams{
		Name:        set.Name,
		Description: set.Description,
		Channels:    channels,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - build registry %s: %w", repoLogPrefix, setName, err)
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d channels from set %s", repoLogPrefix, reg.Len(), setName))
	return reg, nil
}

func encodeConfig(c *registry.OperationConfig) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func decodeConfig(data []byte) (*registry.OperationConfig, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var c registry.OperationConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanChannel(row pgx.Row) (*ChannelRow, error) {
	var ch ChannelRow
	var getter, setter []byte
	err := row.Scan(&ch.ID, &ch.SetName, &ch.Name, &ch.Position, &getter, &setter, &ch.Revision, &ch.Created, &ch.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s - channel: %w", repoLogPrefix, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan channel: %w", repoLogPrefix, err)
	}
	if ch.Getter, err = decodeConfig(getter); err != nil {
		return nil, fmt.Errorf("%s - decode getter for %s: %w", repoLogPrefix, ch.Name, err)
	}
	if ch.Setter, err = decodeConfig(setter); err != nil {
		return nil, fmt.Errorf("%s - decode setter for %s: %w", repoLogPrefix, ch.Name, err)
	}
	return &ch, nil
}
