package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite

	"github.com/mind-engage/emoscreen/internal/workbook"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps common aliases to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "pg", "pgsql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", s)
	}
}

// Open opens a DB, tunes the pool, applies SQLite pragmas and ensures the
// schema for the given catalog exists.
func Open(ctx context.Context, driver Driver, dsn string, catalog workbook.Catalog) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:emoscreen.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/emoscreen?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	tunePool(driver, db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := EnsureSchema(ctx, db, driver, catalog); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the config tables described by catalog plus the
// submission and event tables. Every statement is idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver, catalog workbook.Catalog) error {
	stmts := ConfigDDL(driver, catalog)
	switch driver {
	case DriverSQLite:
		stmts = append(stmts, splitSQL(schemaSQLite)...)
	case DriverPostgres:
		stmts = append(stmts, splitSQL(schemaPostgres)...)
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	for _, stmt := range stmts {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: schema failed at:\n%s\nerr: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func tunePool(driver Driver, db *sql.DB) {
	maxOpen := 20
	maxIdle := 10
	connLife := 45 * time.Minute
	idleLife := 15 * time.Minute

	if driver == DriverSQLite {
		// single writer: keep the pool tiny to avoid busy errors
		maxOpen = 1
		maxIdle = 1
		connLife = 0
		idleLife = 0
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)
	db.SetConnMaxIdleTime(idleLife)
}

func applySQLitePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("db: sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

// splitSQL splits a DDL script on semicolons at line ends. Sufficient for the
// simple DDL kept in this package.
func splitSQL(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
