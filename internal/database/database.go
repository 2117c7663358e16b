// Package database opens the sqlx handle shared by the repositories and
// creates the schema. Postgres is the production store; sqlite3 backs local
// runs of the CLI and the repository tests.
package database

import (
	"fmt"
	"strings"

	"github.com/segyhp/premium-engine/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects and migrates.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := cfg.URL
	if cfg.Driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Connect(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite && isMemory(cfg.URL) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// OpenMemory returns a migrated in-memory sqlite database.
func OpenMemory() (*sqlx.DB, error) {
	return Open(config.DatabaseConfig{Driver: DriverSQLite, URL: ":memory:"})
}

func isMemory(url string) bool {
	return url == ":memory:" || strings.Contains(url, "mode=memory")
}

func sqliteDSN(url string) string {
	if strings.Contains(url, "?") {
		return url + "&_foreign_keys=on&_journal_mode=WAL"
	}
	return url + "?_foreign_keys=on&_journal_mode=WAL"
}

// Migrate creates the schema for the handle's driver.
func Migrate(db *sqlx.DB) error {
	schema := postgresSchema
	if db.DriverName() == DriverSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Amounts are TEXT in sqlite: NUMERIC affinity would turn them into floats.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	form_fields TEXT NOT NULL,
	mapping_fields TEXT NOT NULL,
	underwriting_rules TEXT NOT NULL,
	schedule_options TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	reference TEXT NOT NULL,
	status TEXT NOT NULL,
	form_data TEXT NOT NULL,
	company_data TEXT NOT NULL,
	submitted_by TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS calculations (
	id TEXT PRIMARY KEY,
	quote_id TEXT NOT NULL REFERENCES quotes(id),
	fingerprint TEXT NOT NULL,
	tariff_version TEXT NOT NULL,
	tariff_hash TEXT NOT NULL,
	refus BOOLEAN NOT NULL,
	result TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_quote ON calculations(quote_id, created_at);

CREATE TABLE IF NOT EXISTS payment_installments (
	id TEXT PRIMARY KEY,
	quote_id TEXT NOT NULL REFERENCES quotes(id),
	installment_number INTEGER NOT NULL,
	due_date TIMESTAMP NOT NULL,
	period_start TIMESTAMP NOT NULL,
	period_end TIMESTAMP NOT NULL,
	amount_ht TEXT NOT NULL,
	tax_amount TEXT NOT NULL,
	amount_ttc TEXT NOT NULL,
	rcd_amount TEXT NOT NULL,
	pj_amount TEXT NOT NULL,
	fees_amount TEXT NOT NULL,
	resume_amount TEXT NOT NULL,
	status TEXT NOT NULL,
	paid_at TIMESTAMP,
	emission_date TIMESTAMP,
	payment_method TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_installments_quote ON payment_installments(quote_id, installment_number);
CREATE INDEX IF NOT EXISTS idx_installments_overdue ON payment_installments(status, due_date)
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	code VARCHAR(64) NOT NULL UNIQUE,
	name VARCHAR(255) NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	form_fields JSONB NOT NULL,
	mapping_fields JSONB NOT NULL,
	underwriting_rules JSONB NOT NULL,
	schedule_options JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id),
	reference VARCHAR(64) NOT NULL,
	status VARCHAR(32) NOT NULL,
	form_data JSONB NOT NULL,
	company_data JSONB NOT NULL,
	submitted_by VARCHAR(255) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS calculations (
	id UUID PRIMARY KEY,
	quote_id UUID NOT NULL REFERENCES quotes(id),
	fingerprint VARCHAR(80) NOT NULL,
	tariff_version VARCHAR(32) NOT NULL,
	tariff_hash CHAR(64) NOT NULL,
	refus BOOLEAN NOT NULL,
	result JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calculations_quote ON calculations(quote_id, created_at);

CREATE TABLE IF NOT EXISTS payment_installments (
	id UUID PRIMARY KEY,
	quote_id UUID NOT NULL REFERENCES quotes(id),
	installment_number INTEGER NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	period_start TIMESTAMPTZ NOT NULL,
	period_end TIMESTAMPTZ NOT NULL,
	amount_ht NUMERIC(14,2) NOT NULL,
	tax_amount NUMERIC(14,2) NOT NULL,
	amount_ttc NUMERIC(14,2) NOT NULL,
	rcd_amount NUMERIC(14,2) NOT NULL,
	pj_amount NUMERIC(14,2) NOT NULL,
	fees_amount NUMERIC(14,2) NOT NULL,
	resume_amount NUMERIC(14,2) NOT NULL,
	status VARCHAR(16) NOT NULL,
	paid_at TIMESTAMPTZ,
	emission_date TIMESTAMPTZ,
	payment_method VARCHAR(64),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_installments_quote ON payment_installments(quote_id, installment_number);
CREATE INDEX IF NOT EXISTS idx_installments_overdue ON payment_installments(status, due_date)
`
