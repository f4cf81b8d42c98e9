// pkg/db/schema.go
package db

// schema holds the DDL per driver. Money and quantities are stored as IEEE
// doubles (REAL / DOUBLE PRECISION) so float64 values round-trip exactly.
var schema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS balances (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			amount     REAL NOT NULL CHECK (amount >= 0),
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holdings (
			asset_id     TEXT PRIMARY KEY,
			quantity     REAL NOT NULL,
			average_cost REAL NOT NULL,
			last_updated TIMESTAMP NOT NULL,
			position     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			kind        TEXT NOT NULL CHECK (kind IN ('BUY', 'SELL')),
			asset_id    TEXT NOT NULL,
			quantity    REAL NOT NULL,
			unit_price  REAL NOT NULL,
			total_value REAL NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS balances (
			id         SMALLINT PRIMARY KEY CHECK (id = 1),
			amount     DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS holdings (
			asset_id     VARCHAR(32) PRIMARY KEY,
			quantity     DOUBLE PRECISION NOT NULL,
			average_cost DOUBLE PRECISION NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL,
			position     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq         BIGSERIAL PRIMARY KEY,
			id          UUID NOT NULL UNIQUE,
			kind        VARCHAR(4) NOT NULL CHECK (kind IN ('BUY', 'SELL')),
			asset_id    VARCHAR(32) NOT NULL,
			quantity    DOUBLE PRECISION NOT NULL,
			unit_price  DOUBLE PRECISION NOT NULL,
			total_value DOUBLE PRECISION NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
	},
}
