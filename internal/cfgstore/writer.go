// Package cfgstore persists and reads back the screening configuration
// tables.
package cfgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/logger"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// TableStats summarizes one table's write.
type TableStats struct {
	Table    string
	Rows     int
	Repaired int
	Cleared  int64 // rows removed before writing a Replace table
}

// Writer upserts a Dataset inside a caller-owned transaction. It never
// commits or rolls back; the caller's unit of work decides.
type Writer struct {
	tx  *sql.Tx
	log *logger.Logger
	now func() time.Time
}

func NewWriter(tx *sql.Tx, log *logger.Logger) *Writer {
	return &Writer{tx: tx, log: logger.OrNop(log), now: time.Now}
}

// WriteAll writes every table of the dataset in catalog order. Absent
// optional tables are skipped. The first unrecoverable row aborts with a
// *PersistenceError.
func (w *Writer) WriteAll(ctx context.Context, ds *workbook.Dataset) ([]TableStats, error) {
	var stats []TableStats
	for _, t := range ds.Catalog {
		td := ds.Table(t.Name)
		if !td.Present {
			continue
		}
		st, err := w.WriteTable(ctx, t, td.Records)
		if err != nil {
			return stats, err
		}
		w.log.Info("table written", "table", t.DBName, "rows", st.Rows, "repaired", st.Repaired, "cleared", st.Cleared)
		stats = append(stats, st)
	}
	return stats, nil
}

// WriteTable upserts records keyed by the table's natural key. Each row runs
// under its own savepoint so a rejected row can be repaired and retried
// once without poisoning the surrounding transaction. Replace tables are
// emptied first.
func (w *Writer) WriteTable(ctx context.Context, t *workbook.Table, records []workbook.Record) (TableStats, error) {
	st := TableStats{Table: t.Name}
	if t.Replace {
		res, err := w.tx.ExecContext(ctx, "DELETE FROM "+db.Quote(t.DBName))
		if err != nil {
			return st, &PersistenceError{Table: t.Name, Err: fmt.Errorf("clear: %w", err)}
		}
		st.Cleared, _ = res.RowsAffected()
	}
	query := UpsertSQL(t)
	now := w.now().Unix()
	for _, rec := range records {
		args := rowArgs(t, rec, now)
		err := w.execRow(ctx, query, args)
		if err == nil {
			st.Rows++
			continue
		}
		rj, ok := classify(err)
		if !ok {
			return st, &PersistenceError{Table: t.Name, Key: rec.Key(t), Err: err}
		}
		w.log.Warn("row rejected, retrying with repair", "table", t.DBName, "key", rec.Key(t), "err", err)
		repaired := Repair(t, rec, rj.column)
		if err := w.execRow(ctx, query, rowArgs(t, repaired, now)); err != nil {
			return st, &PersistenceError{Table: t.Name, Key: rec.Key(t), Repaired: true, Err: err}
		}
		st.Rows++
		st.Repaired++
	}
	return st, nil
}

func (w *Writer) execRow(ctx context.Context, query string, args []any) error {
	if _, err := w.tx.ExecContext(ctx, "SAVEPOINT cfg_row"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		if _, rbErr := w.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT cfg_row"); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		_, _ = w.tx.ExecContext(ctx, "RELEASE SAVEPOINT cfg_row")
		return err
	}
	_, err := w.tx.ExecContext(ctx, "RELEASE SAVEPOINT cfg_row")
	return err
}

// Repair returns a copy of rec with structured columns nulled (or set to
// their default when not nullable) and every non-nullable column that is
// absent, or named by the store, backfilled with its default or zero value.
func Repair(t *workbook.Table, rec workbook.Record, column string) workbook.Record {
	out := workbook.Record{}
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range t.Fields {
		switch {
		case f.Type == workbook.Timestamp:
			continue
		case f.Type == workbook.JSON:
			if f.Nullable {
				out[f.Name] = nil
			} else {
				out[f.Name] = workbook.FallbackJSON(f)
			}
		case f.Nullable && f.Name != column:
			continue
		case out[f.Name] == nil:
			out[f.Name] = f.Fallback()
		}
	}
	return out
}

// UpsertSQL renders the INSERT ... ON CONFLICT statement for a table.
// Placeholders are $1..$n in column order, accepted by both drivers.
func UpsertSQL(t *workbook.Table) string {
	cols := t.Columns()
	quoted := make([]string, len(cols))
	ph := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = db.Quote(c)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	keys := make([]string, len(t.Key))
	for i, k := range t.Key {
		keys[i] = db.Quote(k)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		db.Quote(t.DBName), strings.Join(quoted, ","), strings.Join(ph, ","), strings.Join(keys, ","))

	upd := t.ConflictUpdateColumns()
	if len(upd) == 0 {
		return q + "DO NOTHING"
	}
	sets := make([]string, len(upd))
	for i, c := range upd {
		sets[i] = fmt.Sprintf("%s=EXCLUDED.%s", db.Quote(c), db.Quote(c))
	}
	return q + "DO UPDATE SET " + strings.Join(sets, ", ")
}

func rowArgs(t *workbook.Table, rec workbook.Record, now int64) []any {
	args := make([]any, len(t.Fields))
	for i, f := range t.Fields {
		if f.Type == workbook.Timestamp {
			args[i] = now
			continue
		}
		v, present := rec[f.Name]
		if !present && f.Engine && !f.Nullable {
			v = f.Fallback()
		}
		args[i] = bindValue(v)
	}
	return args
}

func bindValue(v any) any {
	switch x := v.(type) {
	case json.RawMessage:
		if x == nil {
			return nil
		}
		return string(x)
	default:
		return x
	}
}
