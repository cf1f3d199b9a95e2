// Package action implements the action engine: the four atomic
// mutations {Add, Update, Delete, Move} plus their Undo/Redo inverses,
// each executed as a single transaction that both changes a user table
// and appends the history/change records that describe it.
package action

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/changelog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/order"
	"rltbl.sh/rltbl/rltlog"
	"rltbl.sh/rltbl/sqlgen"
	"rltbl.sh/rltbl/store"
	"rltbl.sh/rltbl/valcheck"
)

// GitNotifier is the subset of gitcommit.Committer the action engine
// needs: a hook called after every committed Do/Undo/Redo so a
// version-controlled table gets an accompanying commit. A nil
// GitNotifier disables the side effect entirely.
type GitNotifier interface {
	Notify(ctx context.Context, table, user, description string) error
}

// Engine executes actions against one database, validating cells
// through the catalog/valcheck rules and recording every mutation to
// the change log.
type Engine struct {
	DB       *store.DB
	Catalog  *catalog.Catalog
	Log      *changelog.Log
	Messages *message.Store
	Git      GitNotifier
}

// New builds an Engine over db. git may be nil.
func New(db *store.DB, cat *catalog.Catalog, git GitNotifier) *Engine {
	return &Engine{
		DB:       db,
		Catalog:  cat,
		Log:      changelog.New(db.Dialect),
		Messages: message.New(db.Dialect),
		Git:      git,
	}
}

// Result is returned by every top-level action method.
type Result struct {
	HistoryID int64
	RowID     int64
}

func (e *Engine) notifyGit(ctx context.Context, table, user, description string) {
	if e.Git == nil {
		return
	}
	if err := e.Git.Notify(ctx, table, user, description); err != nil {
		rltlog.FromContext(ctx).Warn("git commit failed", "table", table, "error", err)
	}
}

// validateCell checks value against column's declared sql_type and,
// if column carries a "from(table.column)" structure, its foreign-key
// target. Violations are recorded as messages rather than rejecting
// the write — the action always succeeds; validation only annotates.
func (e *Engine) validateCell(ctx context.Context, tx *sql.Tx, user, table string, col catalog.ColumnRow, rowID int64, raw string) error {
	sqlType, err := e.Catalog.ResolveSQLType(ctx, tx, col.Datatype)
	if err != nil {
		return err
	}
	if ok, rule := valcheck.CheckSQLType(sqlType, raw); !ok {
		if err := e.Messages.Add(ctx, tx, message.Message{
			AddedBy: user, Table: table, Row: rowID, Column: col.Column, Value: raw,
			Level: message.Error, Rule: rule,
			Text: fmt.Sprintf("value %q is not a valid %s", raw, col.Datatype),
		}); err != nil {
			return err
		}
	}
	if refTable, refColumn, ok := valcheck.ParseStructure(col.Structure); ok && raw != "" {
		exists, err := e.foreignKeyExists(ctx, tx, refTable, refColumn, raw)
		if err != nil {
			return err
		}
		if !exists {
			if err := e.Messages.Add(ctx, tx, message.Message{
				AddedBy: user, Table: table, Row: rowID, Column: col.Column, Value: raw,
				Level: message.Error, Rule: "key:foreign",
				Text: fmt.Sprintf("value %q is not present in %s.%s", raw, refTable, refColumn),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) foreignKeyExists(ctx context.Context, tx *sql.Tx, table, column, value string) (bool, error) {
	q := e.DB.Dialect
	query := fmt.Sprintf(`select exists(select 1 from %s where %s = %s)`,
		q.QuoteIdent(table), q.QuoteIdent(column), q.BindPlaceholder(1))
	var exists bool
	if err := tx.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, errkind.Wrap(errkind.Internal, "check foreign key", err)
	}
	return exists, nil
}

func (e *Engine) clearCellMessages(ctx context.Context, tx *sql.Tx, table string, row int64, column string) error {
	_, err := e.Messages.Delete(ctx, tx, table, &row, column, "", "")
	return err
}

// resolveDefaultAfter returns the `_id` of table's last row by `_order`,
// or 0 if the table is empty — Add's "after" default when the caller
// doesn't specify a position.
func (e *Engine) resolveDefaultAfter(ctx context.Context, tx *sql.Tx, table string) (int64, error) {
	q := e.DB.Dialect
	query := fmt.Sprintf(`select %s from %s order by %s desc limit 1`,
		q.QuoteIdent("_id"), q.QuoteIdent(table), q.QuoteIdent("_order"))
	var id sql.NullInt64
	if err := tx.QueryRowContext(ctx, query).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errkind.Wrap(errkind.Internal, "resolve default after row", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

func (e *Engine) columnMap(cols []catalog.ColumnRow) map[string]catalog.ColumnRow {
	m := make(map[string]catalog.ColumnRow, len(cols))
	for _, c := range cols {
		m[c.Column] = c
	}
	return m
}

// placeTarget resolves the _order value for a row positioned after
// afterID, respacing first if the gap has collapsed. If a respace
// pass runs, its effect is returned as Move-type changes so it rides
// along in the same history entry as the action that triggered it,
// rather than appearing as a separate, user-visible edit.
func (e *Engine) placeTarget(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string, afterID int64) (int64, []changelog.Change, error) {
	value, needsRespace, _, err := order.Target(ctx, tx, d, table, afterID)
	if err != nil {
		return 0, nil, err
	}
	if !needsRespace {
		return value, nil, nil
	}

	changes, err := e.respaceWithLog(ctx, tx, d, table)
	if err != nil {
		return 0, nil, err
	}
	value, needsRespace, _, err = order.Target(ctx, tx, d, table, afterID)
	if err != nil {
		return 0, nil, err
	}
	if needsRespace {
		return 0, nil, errkind.New(errkind.Internal, "respacing did not restore a usable gap")
	}
	return value, changes, nil
}

// respaceWithLog runs order.Respace and reports every row whose
// `_order` it changed as a Move-type change record.
func (e *Engine) respaceWithLog(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string) ([]changelog.Change, error) {
	before, err := e.rowOrders(ctx, tx, d, table)
	if err != nil {
		return nil, err
	}
	if err := order.Respace(ctx, tx, d, table); err != nil {
		return nil, err
	}
	after, err := e.rowOrders(ctx, tx, d, table)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(before))
	for id := range before {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var changes []changelog.Change
	for _, id := range ids {
		oldO, newO := before[id], after[id]
		if oldO == newO {
			continue
		}
		oldS, newS := fmt.Sprintf("%d", oldO), fmt.Sprintf("%d", newO)
		changes = append(changes, changelog.Change{
			Type: changelog.Move, Table: table, Row: id, Column: "_order",
			Before: &oldS, Value: &newS,
		})
	}
	return changes, nil
}

func (e *Engine) rowOrders(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string) (map[int64]int64, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`select %s, %s from %s`,
		d.QuoteIdent("_id"), d.QuoteIdent("_order"), d.QuoteIdent(table)))
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query row orders", err)
	}
	defer rows.Close()
	out := map[int64]int64{}
	for rows.Next() {
		var id, ord int64
		if err := rows.Scan(&id, &ord); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan row order", err)
		}
		out[id] = ord
	}
	return out, rows.Err()
}

func fieldsToRaw(fields map[string]cellval.Value) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v.Raw()
	}
	return out
}
