package database

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = map[Dialect][]string{
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS links (
			id              BIGSERIAL PRIMARY KEY,
			original_url    TEXT NOT NULL,
			short_code      VARCHAR(8) NOT NULL UNIQUE,
			click_count     BIGINT NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_clicked_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_created_at ON links (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_links_click_count ON links (click_count DESC)`,
	},
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS links (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			original_url    TEXT NOT NULL,
			short_code      TEXT NOT NULL UNIQUE,
			click_count     INTEGER NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL,
			last_clicked_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_created_at ON links (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_links_click_count ON links (click_count DESC)`,
	},
}

// Migrate creates the links table and its indexes. Safe to run on every boot.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	statements, ok := schema[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", dialect)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}
