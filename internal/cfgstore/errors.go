package cfgstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// PersistenceError is a row the store rejected. Repaired is true when the
// row had already been retried after repair.
type PersistenceError struct {
	Table    string
	Key      string
	Repaired bool
	Err      error
}

func (e *PersistenceError) Error() string {
	suffix := ""
	if e.Repaired {
		suffix = " (after repair)"
	}
	return fmt.Sprintf("persist %s[%s]%s: %v", e.Table, e.Key, suffix, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// rejection describes a store error the writer knows how to repair.
type rejection struct {
	notNull bool
	badJSON bool
	column  string // set when the store names the offending column
}

// classify reports whether err is a structured-value or not-null rejection.
func classify(err error) (rejection, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502": // not_null_violation
			return rejection{notNull: true, column: pgErr.ColumnName}, true
		case "22P02", "22032", "23514": // invalid_text_representation, invalid_json_text, check_violation
			return rejection{badJSON: true, column: pgErr.ColumnName}, true
		}
		return rejection{}, false
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return rejection{notNull: true, column: sqliteColumn(sqErr.Error(), "NOT NULL constraint failed:")}, true
		case sqlite3.SQLITE_CONSTRAINT_CHECK:
			return rejection{badJSON: true}, true
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return rejection{notNull: true, column: sqliteColumn(msg, "NOT NULL constraint failed:")}, true
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "malformed JSON"):
		return rejection{badJSON: true}, true
	}
	return rejection{}, false
}

// sqliteColumn extracts "col" from "... NOT NULL constraint failed: table.col".
func sqliteColumn(msg, marker string) string {
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(msg[i+len(marker):])
	if j := strings.IndexAny(rest, " )\n"); j >= 0 {
		rest = rest[:j]
	}
	if k := strings.LastIndexByte(rest, '.'); k >= 0 {
		rest = rest[k+1:]
	}
	return strings.Trim(rest, `"`)
}
