package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/idro/idro/internal/config"

	_ "modernc.org/sqlite"
)

// NewInMemory creates a migrated in-memory database for tests. It has
// foreign keys enabled but no WAL and no backups.
func NewInMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	// Every connection to :memory: is a new database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		path:   ":memory:",
		config: config.DatabaseConfig{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if _, err := Migrate(context.Background(), db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating in-memory database: %w", err)
	}
	return db, nil
}
