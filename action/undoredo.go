package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// Undo reverses the most recent not-yet-undone Do/Redo action by user,
// applying the inverse of each of its change records in reverse order,
// and records an Undo history entry.
func (e *Engine) Undo(ctx context.Context, user string) (*Result, error) {
	return e.undoOrRedo(ctx, user, true)
}

// Redo re-applies the most recently undone action by user, in its
// original order, and records a Redo history entry.
func (e *Engine) Redo(ctx context.Context, user string) (*Result, error) {
	return e.undoOrRedo(ctx, user, false)
}

func (e *Engine) undoOrRedo(ctx context.Context, user string, undo bool) (*Result, error) {
	var result Result
	var table string
	err := e.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		history, err := e.Log.ForUser(ctx, tx, user)
		if err != nil {
			return err
		}

		var candidate *changelog.History
		var action changelog.ActionKind
		if undo {
			candidate = changelog.UndoCandidate(history)
			action = changelog.Undo
		} else {
			candidate = changelog.RedoCandidate(history)
			action = changelog.Redo
		}
		if candidate == nil {
			verb := "undo"
			if !undo {
				verb = "redo"
			}
			return errkind.New(errkind.NotFound, fmt.Sprintf("nothing to %s", verb))
		}

		q := e.DB.Dialect
		if undo {
			for i := len(candidate.Content) - 1; i >= 0; i-- {
				if err := e.invertChange(ctx, tx, q, candidate.Content[i]); err != nil {
					return err
				}
			}
		} else {
			for _, c := range candidate.Content {
				if err := e.applyChange(ctx, tx, q, c); err != nil {
					return err
				}
			}
		}

		verb := "Undo"
		if !undo {
			verb = "Redo"
		}
		description := fmt.Sprintf("%s: %s", verb, candidate.Description)
		historyID, err := e.Log.Append(ctx, tx, user, candidate.Table, description, action, candidate.Content)
		if err != nil {
			return err
		}
		table = candidate.Table
		result = Result{HistoryID: historyID, RowID: rowOfChanges(candidate.Content)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notifyGit(ctx, table, user, "")
	return &result, nil
}

func rowOfChanges(changes []changelog.Change) int64 {
	for _, c := range changes {
		if c.Type != changelog.Move || c.Column != "_order" {
			return c.Row
		}
	}
	if len(changes) > 0 {
		return changes[0].Row
	}
	return 0
}

// invertChange undoes the effect of one change record.
func (e *Engine) invertChange(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, c changelog.Change) error {
	switch c.Type {
	case changelog.Add:
		return e.deleteRowByID(ctx, tx, q, c.Table, c.Row)
	case changelog.Delete:
		var fields map[string]string
		if c.Value != nil {
			if err := json.Unmarshal([]byte(*c.Value), &fields); err != nil {
				return errkind.Wrap(errkind.Internal, "unmarshal deleted row", err)
			}
		}
		after := int64(0)
		if c.FromAfter != nil {
			after = *c.FromAfter
		}
		return e.insertRowWithID(ctx, tx, q, c.Table, c.Row, after, fields)
	case changelog.Update:
		before := ""
		if c.Before != nil {
			before = *c.Before
		}
		return e.setCell(ctx, tx, q, c.Table, c.Row, c.Column, before)
	case changelog.Move:
		if c.Column == "_order" {
			return e.setOrderLiteral(ctx, tx, q, c.Table, c.Row, c.Before)
		}
		if c.FromAfter == nil || c.ToAfter == nil || *c.FromAfter == *c.ToAfter || c.Row == *c.ToAfter {
			return nil
		}
		return e.moveRowTo(ctx, tx, q, c.Table, c.Row, *c.FromAfter)
	}
	return errkind.New(errkind.Internal, fmt.Sprintf("unknown change type %q", c.Type))
}

// applyChange re-applies the effect of one change record, in its
// original forward direction.
func (e *Engine) applyChange(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, c changelog.Change) error {
	switch c.Type {
	case changelog.Add:
		after := int64(0)
		if c.ToAfter != nil {
			after = *c.ToAfter
		}
		var fields map[string]string
		if c.Value != nil {
			if err := json.Unmarshal([]byte(*c.Value), &fields); err != nil {
				return errkind.Wrap(errkind.Internal, "unmarshal added row", err)
			}
		}
		return e.insertRowWithID(ctx, tx, q, c.Table, c.Row, after, fields)
	case changelog.Delete:
		return e.deleteRowByID(ctx, tx, q, c.Table, c.Row)
	case changelog.Update:
		value := ""
		if c.Value != nil {
			value = *c.Value
		}
		return e.setCell(ctx, tx, q, c.Table, c.Row, c.Column, value)
	case changelog.Move:
		if c.Column == "_order" {
			return e.setOrderLiteral(ctx, tx, q, c.Table, c.Row, c.Value)
		}
		if c.FromAfter == nil || c.ToAfter == nil || *c.FromAfter == *c.ToAfter || c.Row == *c.ToAfter {
			return nil
		}
		return e.moveRowTo(ctx, tx, q, c.Table, c.Row, *c.ToAfter)
	}
	return errkind.New(errkind.Internal, fmt.Sprintf("unknown change type %q", c.Type))
}

func (e *Engine) deleteRowByID(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string, row int64) error {
	stmt := fmt.Sprintf(`delete from %s where %s = %s`, q.QuoteIdent(table), q.QuoteIdent("_id"), q.BindPlaceholder(1))
	if _, err := tx.ExecContext(ctx, stmt, row); err != nil {
		return errkind.Wrap(errkind.Internal, "delete row", err)
	}
	return nil
}

// insertRowWithID reinserts a row at an explicit `_id` (reusing the id
// a prior Delete freed, per the "delete then undo" edge case), filling
// any column absent from fields with an empty string.
func (e *Engine) insertRowWithID(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string, id, after int64, fields map[string]string) error {
	cols, err := e.Catalog.GetColumns(ctx, tx, table)
	if err != nil {
		return err
	}
	orderVal, _, err := e.placeTarget(ctx, tx, q, table, after)
	if err != nil {
		return err
	}

	colNames := []string{"_id", "_order"}
	args := []any{id, orderVal}
	for _, col := range cols {
		colNames = append(colNames, col.Column)
		if v, ok := fields[col.Column]; ok {
			args = append(args, v)
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
		return errkind.Wrap(errkind.Internal, "reinsert row", err)
	}
	return nil
}

func (e *Engine) setCell(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string, row int64, column, value string) error {
	stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
		q.QuoteIdent(table), q.QuoteIdent(column), q.BindPlaceholder(1), q.QuoteIdent("_id"), q.BindPlaceholder(2))
	if _, err := tx.ExecContext(ctx, stmt, value, row); err != nil {
		return errkind.Wrap(errkind.Internal, "restore cell", err)
	}
	return nil
}

func (e *Engine) setOrderLiteral(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string, row int64, orderStr *string) error {
	if orderStr == nil {
		return nil
	}
	v, err := strconv.ParseInt(*orderStr, 10, 64)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "parse _order literal", err)
	}
	stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
		q.QuoteIdent(table), q.QuoteIdent("_order"), q.BindPlaceholder(1), q.QuoteIdent("_id"), q.BindPlaceholder(2))
	if _, err := tx.ExecContext(ctx, stmt, v, row); err != nil {
		return errkind.Wrap(errkind.Internal, "restore _order", err)
	}
	return nil
}

func (e *Engine) moveRowTo(ctx context.Context, tx *sql.Tx, q sqlgen.Dialect, table string, row, after int64) error {
	value, _, err := e.placeTarget(ctx, tx, q, table, after)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
		q.QuoteIdent(table), q.QuoteIdent("_order"), q.BindPlaceholder(1), q.QuoteIdent("_id"), q.BindPlaceholder(2))
	if _, err := tx.ExecContext(ctx, stmt, value, row); err != nil {
		return errkind.Wrap(errkind.Internal, "move row", err)
	}
	return nil
}
