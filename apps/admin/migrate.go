package main

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ademscil/Event-Management-BE-sub001/storage/database"
)

var migrateFunc = database.Migrate // mockable

// migrator runs goose commands against db with the embedded migrations.
func migrator(db *sqlx.DB) func(ctx context.Context, command string, args ...string) error {
	return func(ctx context.Context, command string, args ...string) error {
		return migrateFunc(ctx, db, command, args...)
	}
}
