package cfgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mind-engage/emoscreen/internal/db"
	"github.com/mind-engage/emoscreen/internal/workbook"
)

// Read loads every table of the catalog back into a Dataset with the same
// value types the workbook loader produces. Every table is marked present.
func Read(ctx context.Context, q db.Execer, catalog workbook.Catalog) (*workbook.Dataset, error) {
	ds := &workbook.Dataset{Catalog: catalog, Tables: map[string]*workbook.TableData{}}
	for _, t := range catalog {
		recs, err := readTable(ctx, q, t)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.DBName, err)
		}
		ds.Tables[t.Name] = &workbook.TableData{
			Table:   t,
			Present: true,
			Columns: t.Columns(),
			Records: recs,
		}
	}
	return ds, nil
}

func readTable(ctx context.Context, q db.Execer, t *workbook.Table) ([]workbook.Record, error) {
	cols := t.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = db.Quote(c)
	}
	keys := make([]string, len(t.Key))
	for i, k := range t.Key {
		keys[i] = db.Quote(k)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ","), db.Quote(t.DBName), strings.Join(keys, ",")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []workbook.Record
	for rows.Next() {
		dest := make([]any, len(t.Fields))
		for i, f := range t.Fields {
			dest[i] = scanTarget(f.Type)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		rec := workbook.Record{}
		for i, f := range t.Fields {
			rec[f.Name] = fromScan(f, dest[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanTarget(ft workbook.FieldType) any {
	switch ft {
	case workbook.Int, workbook.Timestamp:
		return new(sql.NullInt64)
	case workbook.Decimal:
		return new(decimal.NullDecimal)
	case workbook.Bool:
		return new(sql.NullBool)
	default:
		return new(sql.NullString)
	}
}

func fromScan(f workbook.Field, v any) any {
	switch x := v.(type) {
	case *sql.NullInt64:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case *decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal
	case *sql.NullBool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	case *sql.NullString:
		if !x.Valid {
			return nil
		}
		switch f.Type {
		case workbook.JSON:
			return json.RawMessage(x.String)
		case workbook.Code, workbook.Lang:
			if x.String == "" {
				return nil
			}
		}
		return x.String
	}
	return nil
}
