package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

type Options struct {
	// Driver is one of "postgres", "sqlite" or "libsql".
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// Open connects to the configured SQL backend and returns the handle with the
// dialect its queries must be written in.
func Open(opts Options) (*sql.DB, Dialect, error) {
	driverName, dialect, err := resolveDriver(opts.Driver, opts.DSN)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	return db, dialect, nil
}

func resolveDriver(driver, dsn string) (string, Dialect, error) {
	switch driver {
	case "postgres":
		return "pgx", DialectPostgres, nil
	case "sqlite":
		// Turso URLs go through the libsql client even when configured as sqlite.
		if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") {
			return "libsql", DialectSQLite, nil
		}
		return "sqlite", DialectSQLite, nil
	case "libsql":
		return "libsql", DialectSQLite, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

func GetVersion(ctx context.Context, db *sql.DB, dialect Dialect) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	query := "SELECT version()"
	if dialect == DialectSQLite {
		query = "SELECT 'SQLite ' || sqlite_version()"
	}

	var version string
	err := db.QueryRowContext(ctx, query).Scan(&version)
	return version, err
}
