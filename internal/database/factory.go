package database

import (
	"fmt"
	"path/filepath"

	"tidy-go/internal/config"
	"tidy-go/internal/tidy"
)

// DBFileName is the name of the SQLite file inside the data directory.
const DBFileName = "tidy.db"

// NewDatabaseFromConfig creates a migrated database based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock tidy.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DBFileName), clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
