// pkg/db/db.go
package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds database connection configuration.
type Config struct {
	Driver       string `mapstructure:"driver"` // sqlite3 or postgres
	DSN          string `mapstructure:"dsn"`    // SQLite file path, or a full PostgreSQL DSN
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	var (
		conn *sqlx.DB
		err  error
	)
	switch cfg.Driver {
	case DriverSQLite, "sqlite", "":
		conn, err = NewSQLiteDB(cfg)
	case DriverPostgres:
		conn, err = NewPostgresDB(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates the portfolio tables if they do not exist.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	statements, ok := schema[conn.DriverName()]
	if !ok {
		return fmt.Errorf("no schema for driver %q", conn.DriverName())
	}
	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
