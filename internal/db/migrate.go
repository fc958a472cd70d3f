package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"ingestengine/internal/db/migrations"
)

// Migrate applies every pending migration in internal/db/migrations
// against database, replacing the teacher's inline MigrateUp with
// versioned goose migration files.
func Migrate(database *sql.DB) error {
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("db: set dialect: %w", err)
	}
	if err := goose.Up(database, "."); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
