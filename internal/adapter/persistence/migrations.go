package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the DDL for every table this core owns. Statements are
// idempotent so Migrate can run at every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_entries (
		id UUID PRIMARY KEY,
		actor_id TEXT,
		actor_name TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		old_values JSONB,
		new_values JSONB,
		justification TEXT,
		context JSONB,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_entity ON audit_entries (entity_type, entity_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries (actor_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS audit_entries_archive (
		LIKE audit_entries INCLUDING ALL
	)`,
	`CREATE TABLE IF NOT EXISTS exchange_rates (
		id UUID PRIMARY KEY,
		from_currency TEXT NOT NULL,
		to_currency TEXT NOT NULL,
		rate NUMERIC(20, 6) NOT NULL,
		effective_date TIMESTAMPTZ NOT NULL,
		source TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair ON exchange_rates (from_currency, to_currency, effective_date DESC)`,
	`CREATE TABLE IF NOT EXISTS locked_rates (
		id UUID PRIMARY KEY,
		transaction_type TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		from_currency TEXT NOT NULL,
		to_currency TEXT NOT NULL,
		rate NUMERIC(20, 6) NOT NULL,
		locked_at TIMESTAMPTZ NOT NULL,
		UNIQUE (transaction_type, transaction_id, from_currency, to_currency)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (entity_type, entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS budget_lines (
		budget_code TEXT NOT NULL,
		fiscal_year TEXT NOT NULL,
		allocated NUMERIC(20, 2) NOT NULL DEFAULT 0,
		committed NUMERIC(20, 2) NOT NULL DEFAULT 0,
		spent NUMERIC(20, 2) NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (budget_code, fiscal_year)
	)`,
}

// Migrate applies the schema to the database
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
