package action

import (
	"context"
	"database/sql"
	"fmt"

	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
)

// Update sets one or more cell values of row in table. Every affected
// column gets its own Update change record carrying the value it held
// before the write, so Undo can restore it column-by-column.
func (e *Engine) Update(ctx context.Context, user, table string, row int64, fields map[string]cellval.Value, description string) (*Result, error) {
	var result Result
	err := e.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q := e.DB.Dialect
		cols, err := e.Catalog.GetColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		colByName := e.columnMap(cols)

		before, err := e.readRow(ctx, tx, table, row)
		if err != nil {
			return err
		}

		var changes []changelog.Change
		for col, newVal := range fields {
			cr, ok := colByName[col]
			if !ok {
				return errkind.New(errkind.TypeError, fmt.Sprintf("unknown column %q in %q", col, table))
			}

			stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
				q.QuoteIdent(table), q.QuoteIdent(col), q.BindPlaceholder(1), q.QuoteIdent("_id"), q.BindPlaceholder(2))
			if _, err := tx.ExecContext(ctx, stmt, newVal.SQLArg(), row); err != nil {
				return errkind.Wrap(errkind.Internal, "update cell", err)
			}

			if err := e.clearCellMessages(ctx, tx, table, row, col); err != nil {
				return err
			}
			newRaw := newVal.Raw()
			if err := e.validateCell(ctx, tx, user, table, cr, row, newRaw); err != nil {
				return err
			}

			oldRaw := before[col].Raw()
			changes = append(changes, changelog.Change{
				Type: changelog.Update, Table: table, Row: row, Column: col,
				Before: &oldRaw, Value: &newRaw,
			})
		}

		if len(changes) == 0 {
			return errkind.New(errkind.ProtocolError, "update requires at least one field")
		}

		if description == "" {
			description = fmt.Sprintf("Update row %d in \"%s\"", row, table)
		}
		historyID, err := e.Log.Append(ctx, tx, user, table, description, changelog.Do, changes)
		if err != nil {
			return err
		}
		result = Result{HistoryID: historyID, RowID: row}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notifyGit(ctx, table, user, description)
	return &result, nil
}
