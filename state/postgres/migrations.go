package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the caplock state (PostgreSQL).
var Migrations = migrate.NewGroup("caplock")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_state",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS caplock_state (
    id              TEXT PRIMARY KEY,
    doc             TEXT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS caplock_state`)
				return err
			},
		},
	)
}
