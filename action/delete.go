package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/order"
)

// Delete removes row from table. The row's full contents and its
// position are captured in the change record so Undo can recreate it
// exactly where it was.
func (e *Engine) Delete(ctx context.Context, user, table string, row int64, description string) (*Result, error) {
	var result Result
	err := e.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q := e.DB.Dialect

		fields, err := e.readRow(ctx, tx, table, row)
		if err != nil {
			return err
		}
		fromAfter, err := order.FromAfterID(ctx, tx, q, table, row)
		if err != nil {
			return err
		}

		raw := fieldsToRaw(fields)
		payload, err := json.Marshal(raw)
		if err != nil {
			return errkind.Wrap(errkind.Internal, "marshal deleted row", err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where %s = %s`,
			q.QuoteIdent(table), q.QuoteIdent("_id"), q.BindPlaceholder(1)), row); err != nil {
			return errkind.Wrap(errkind.Internal, "delete row", err)
		}
		// Messages attached to this row are not cascaded here: they are
		// independent of _id reuse and persist until explicitly deleted
		// through the message store, even across a row's deletion.

		value := string(payload)
		change := changelog.Change{Type: changelog.Delete, Table: table, Row: row, Value: &value, FromAfter: &fromAfter}

		if description == "" {
			description = fmt.Sprintf("Delete row %d from \"%s\"", row, table)
		}
		historyID, err := e.Log.Append(ctx, tx, user, table, description, changelog.Do, []changelog.Change{change})
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
