package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// Add inserts a new row into table, positioned immediately after
// afterID (or after the current last row, if afterID is nil), filling
// any column missing from fields with its declared default, or SQL
// NULL if the column's nulltype permits it. It records one Do history
// entry and returns the new row's `_id`.
func (e *Engine) Add(ctx context.Context, user, table string, fields map[string]cellval.Value, afterID *int64, description string) (*Result, error) {
	var result Result
	err := e.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q := e.DB.Dialect
		cols, err := e.Catalog.GetColumns(ctx, tx, table)
		if err != nil {
			return err
		}

		after := int64(0)
		if afterID != nil {
			after = *afterID
		} else {
			after, err = e.resolveDefaultAfter(ctx, tx, table)
			if err != nil {
				return err
			}
		}

		newID, err := e.nextRowID(ctx, tx, q, table)
		if err != nil {
			return err
		}
		orderVal, respaceChanges, err := e.placeTarget(ctx, tx, q, table, after)
		if err != nil {
			return err
		}

		colNames := []string{"_id", "_order"}
		args := []any{newID, orderVal}
		provided := make(map[string]string, len(fields))
		for _, col := range cols {
			colNames = append(colNames, col.Column)
			if v, ok := fields[col.Column]; ok {
				args = append(args, v.SQLArg())
				provided[col.Column] = v.Raw()
			} else if col.Default != "" {
				args = append(args, col.Default)
				provided[col.Column] = col.Default
			} else if col.Nulltype != "" {
				args = append(args, nil)
			} else {
				args = append(args, "")
			}
		}

		quoted := make([]string, len(colNames))
		for i, c := range colNames {
			quoted[i] = q.QuoteIdent(c)
		}
		stmt := fmt.Sprintf(`insert into %s (%s) values (%s)`,
			q.QuoteIdent(table), joinIdents(quoted), sqlgen.Placeholders(q, 1, len(colNames)))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return errkind.Wrap(errkind.Internal, "insert row", err)
		}

		for _, col := range cols {
			raw, ok := provided[col.Column]
			if !ok {
				continue
			}
			if err := e.validateCell(ctx, tx, user, table, col, newID, raw); err != nil {
				return err
			}
		}

		// Snapshot the row as it actually landed (post default/NULL
		// resolution) so Redo of an undone Add can reinsert the same
		// cell contents, the same way Delete snapshots the row it
		// removes for its own Undo.
		inserted, err := e.readRow(ctx, tx, table, newID)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(fieldsToRaw(inserted))
		if err != nil {
			return errkind.Wrap(errkind.Internal, "marshal inserted row", err)
		}
		valueStr := string(payload)
		change := changelog.Change{Type: changelog.Add, Table: table, Row: newID, Value: &valueStr, ToAfter: &after}
		changes := append([]changelog.Change{change}, respaceChanges...)

		if description == "" {
			description = fmt.Sprintf("Add row %d to \"%s\"", newID, table)
		}
		historyID, err := e.Log.Append(ctx, tx, user, table, description, changelog.Do, changes)
		if err != nil {
			return err
		}
		result = Result{HistoryID: historyID, RowID: newID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notifyGit(ctx, table, user, description)
	return &result, nil
}

func (e *Engine) nextRowID(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string) (int64, error) {
	query := fmt.Sprintf(`select coalesce(max(%s), 0) + 1 from %s`, q.QuoteIdent("_id"), q.QuoteIdent(table))
	var id int64
	if err := tx.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, errkind.Wrap(errkind.Internal, "compute next row id", err)
	}
	return id, nil
}

func joinIdents(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

// readRow loads every declared column of (table,row) as raw text, for
// use when building a Delete's inverse or an Update's "before" value.
func (e *Engine) readRow(ctx context.Context, tx *sql.Tx, table string, row int64) (map[string]cellval.Value, error) {
	q := e.DB.Dialect
	cols, err := e.Catalog.GetColumns(ctx, tx, table)
	if err != nil {
		return nil, err
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q.QuoteIdent(c.Column)
	}
	query := fmt.Sprintf(`select %s from %s where %s = %s`, joinIdents(quoted), q.QuoteIdent(table), q.QuoteIdent("_id"), q.BindPlaceholder(1))
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := tx.QueryRowContext(ctx, query, row).Scan(ptrs...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.New(errkind.NotFound, fmt.Sprintf("row %d in %q", row, table))
		}
		return nil, errkind.Wrap(errkind.Internal, "read row", err)
	}

	out := make(map[string]cellval.Value, len(cols))
	for i, c := range cols {
		out[c.Column] = valueFromSQL(vals[i])
	}
	return out, nil
}

func valueFromSQL(v any) cellval.Value {
	switch t := v.(type) {
	case nil:
		return cellval.NullValue()
	case []byte:
		return cellval.TextValue(string(t))
	case string:
		return cellval.TextValue(t)
	case int64:
		return cellval.Value{Kind: cellval.Integer, Integer: t}
	case float64:
		return cellval.Value{Kind: cellval.Numeric, Numeric: t}
	default:
		return cellval.TextValue(fmt.Sprintf("%v", t))
	}
}
