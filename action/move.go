package action

import (
	"context"
	"database/sql"
	"fmt"

	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/order"
)

// Move repositions row to immediately after afterID (0 meaning "before
// the first row"). Moving a row after itself, or after the row it
// already follows, is a zero-effect move: it is still recorded in
// history (so Undo/Redo bookkeeping stays consistent) but writes no
// `_order` change.
func (e *Engine) Move(ctx context.Context, user, table string, row, afterID int64, description string) (*Result, error) {
	var result Result
	err := e.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q := e.DB.Dialect

		fromAfter, err := order.FromAfterID(ctx, tx, q, table, row)
		if err != nil {
			return err
		}

		var changes []changelog.Change
		moveChange := changelog.Change{Type: changelog.Move, Table: table, Row: row, FromAfter: &fromAfter, ToAfter: &afterID}

		if afterID == row || afterID == fromAfter {
			changes = []changelog.Change{moveChange}
		} else {
			value, respaceChanges, err := e.placeTarget(ctx, tx, q, table, afterID)
			if err != nil {
				return err
			}
			stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
				q.QuoteIdent(table), q.QuoteIdent("_order"), q.BindPlaceholder(1), q.QuoteIdent("_id"), q.BindPlaceholder(2))
			if _, err := tx.ExecContext(ctx, stmt, value, row); err != nil {
				return errkind.Wrap(errkind.Internal, "update row order", err)
			}
			changes = append([]changelog.Change{moveChange}, respaceChanges...)
		}

		if description == "" {
			description = fmt.Sprintf("Move row %d in \"%s\"", row, table)
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
