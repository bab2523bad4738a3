// Package postgres provides a PostgreSQL-backed state container using
// grove ORM with Go-based migrations. The full state is persisted as one
// serialized snapshot row, rewritten on every update; reads are served
// from memory.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/caplock/state"
)

// Compile-time interface check.
var _ state.Container = (*Container)(nil)

// snapshotID is the primary key of the single snapshot row.
const snapshotID = "current"

type snapshotModel struct {
	grove.BaseModel `grove:"table:caplock_state"`
	ID              string    `grove:"id,pk"`
	Doc             string    `grove:"doc,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

// Container is a PostgreSQL implementation of the state container.
type Container struct {
	mem    *state.Memory
	db     *grove.DB
	pgdb   *pgdriver.PgDB
	logger *slog.Logger
}

// New creates a PostgreSQL container. Call Migrate and Load before first use.
func New(db *grove.DB, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		mem:    state.NewMemory(),
		db:     db,
		pgdb:   pgdriver.Unwrap(db),
		logger: logger,
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (c *Container) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(c.pgdb)
	if err != nil {
		return fmt.Errorf("caplock/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("caplock/postgres: migration failed: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot into memory. A missing snapshot row
// leaves the empty state in place.
func (c *Container) Load(ctx context.Context) error {
	m := new(snapshotModel)
	err := c.pgdb.NewSelect(m).Where("id = ?", snapshotID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("caplock/postgres: load snapshot: %w", err)
	}
	st, err := state.DecodeSnapshot(m.Doc)
	if err != nil {
		return err
	}
	c.mem.Update(st)
	return nil
}

// State returns a deep copy of the current state.
func (c *Container) State() state.State { return c.mem.State() }

// Update replaces the in-memory state, notifies subscribers, and rewrites
// the persisted snapshot. Persistence failures are logged; the in-memory
// state remains authoritative.
func (c *Container) Update(next state.State) {
	c.mem.Update(next)
	if err := c.persist(context.Background(), next); err != nil {
		c.logger.Error("caplock/postgres: persist snapshot", slog.Any("error", err))
	}
}

// Subscribe registers fn for update notifications.
func (c *Container) Subscribe(fn func(state.State)) (cancel func()) {
	return c.mem.Subscribe(fn)
}

// Ping verifies the database connection.
func (c *Container) Ping(ctx context.Context) error { return c.db.Ping(ctx) }

// Close closes the database connection.
func (c *Container) Close() error { return c.db.Close() }

func (c *Container) persist(ctx context.Context, st state.State) error {
	doc, err := state.EncodeSnapshot(st)
	if err != nil {
		return err
	}
	if _, err := c.pgdb.NewDelete((*snapshotModel)(nil)).
		Where("id = ?", snapshotID).Exec(ctx); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	m := &snapshotModel{ID: snapshotID, Doc: doc, UpdatedAt: time.Now().UTC()}
	if _, err := c.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
