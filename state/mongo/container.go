// Package mongo provides a MongoDB-backed state container using grove's
// mongo driver. The full state is persisted as one serialized snapshot
// document, rewritten on every update; reads are served from memory.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/caplock/state"
)

// Compile-time interface check.
var _ state.Container = (*Container)(nil)

// colState is the snapshot collection name.
const colState = "caplock_state"

// snapshotID is the _id of the single snapshot document.
const snapshotID = "current"

type snapshotModel struct {
	grove.BaseModel `grove:"table:caplock_state"`
	ID              string    `grove:"id,pk"      bson:"_id"`
	Doc             string    `grove:"doc"        bson:"doc"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
}

// Container is a MongoDB implementation of the state container.
type Container struct {
	mem    *state.Memory
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	logger *slog.Logger
}

// New creates a MongoDB container backed by Grove ORM. Call Migrate and
// Load before first use.
func New(db *grove.DB, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		mem:    state.NewMemory(),
		db:     db,
		mdb:    mongodriver.Unwrap(db),
		logger: logger,
	}
}

// Migrate creates indexes for the caplock collections.
func (c *Container) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := c.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("caplock/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// migrationIndexes returns the index definitions for the caplock collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colState: {
			{
				Keys:    bson.D{{Key: "updated_at", Value: 1}},
				Options: options.Index().SetName("idx_caplock_state_updated_at"),
			},
		},
	}
}

// Load reads the persisted snapshot into memory. A missing snapshot
// document leaves the empty state in place.
func (c *Container) Load(ctx context.Context) error {
	var m snapshotModel
	err := c.mdb.NewFind(&m).
		Filter(bson.M{"_id": snapshotID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil
		}
		return fmt.Errorf("caplock/mongo: load snapshot: %w", err)
	}
	st, err := state.DecodeSnapshot(m.Doc)
	if err != nil {
		return err
	}
	c.mem.Update(st)
	return nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// State returns a deep copy of the current state.
func (c *Container) State() state.State { return c.mem.State() }

// Update replaces the in-memory state, notifies subscribers, and rewrites
// the persisted snapshot. Persistence failures are logged; the in-memory
// state remains authoritative.
func (c *Container) Update(next state.State) {
	c.mem.Update(next)
	if err := c.persist(context.Background(), next); err != nil {
		c.logger.Error("caplock/mongo: persist snapshot", slog.Any("error", err))
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
	if _, err := c.mdb.NewDelete((*snapshotModel)(nil)).
		Filter(bson.M{"_id": snapshotID}).
		Exec(ctx); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	m := &snapshotModel{ID: snapshotID, Doc: doc, UpdatedAt: time.Now().UTC()}
	if _, err := c.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}
