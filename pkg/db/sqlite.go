// pkg/db/sqlite.go
package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// NewSQLiteDB opens (creating if needed) the SQLite database file at cfg.DSN.
func NewSQLiteDB(cfg Config) (*sqlx.DB, error) {
	path := cfg.DSN
	if path == "" {
		path = "data/portfolio.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=FULL", path)
	db, err := sqlx.Connect(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A single writer connection serializes access to the file.
	db.SetMaxOpenConns(1)
	return db, nil
}
