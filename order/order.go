// Package order implements the row-order model: the integer `_order`
// key that defines a user table's logical row sequence, its reservation
// on insert, its recomputation on move, and the re-spacing pass that
// restores the nominal gap once two neighbouring values leave no room
// between them.
package order

import (
	"context"
	"database/sql"
	"fmt"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// Gap is the nominal distance between two consecutive `_order` values.
const Gap = 1000

// orderOf returns the `_order` of the row with the given `_id`, or an
// error if it doesn't exist.
func orderOf(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string, id int64) (int64, error) {
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`select %s from %s where %s = %s`,
		d.QuoteIdent("_order"), d.QuoteIdent(table), d.QuoteIdent("_id"), d.BindPlaceholder(1)), id)
	var o int64
	if err := row.Scan(&o); err != nil {
		if err == sql.ErrNoRows {
			return 0, errkind.New(errkind.NotFound, fmt.Sprintf("row %d", id))
		}
		return 0, errkind.Wrap(errkind.Internal, "query row _order", err)
	}
	return o, nil
}

// successorOrder returns the smallest `_order` strictly greater than
// after, or ok=false if no such row exists (after is the last row).
func successorOrder(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string, after int64) (int64, bool, error) {
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`select min(%s) from %s where %s > %s`,
		d.QuoteIdent("_order"), d.QuoteIdent(table), d.QuoteIdent("_order"), d.BindPlaceholder(1)), after)
	var o sql.NullInt64
	if err := row.Scan(&o); err != nil {
		return 0, false, errkind.Wrap(errkind.Internal, "query successor _order", err)
	}
	if !o.Valid {
		return 0, false, nil
	}
	return o.Int64, true, nil
}

// Target computes the `_order` value to assign a row being positioned
// immediately after the row identified by afterID (0 meaning "before
// the first row"). It reports whether the available gap was too small
// (<2) and a re-spacing pass is required before the move can proceed.
func Target(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string, afterID int64) (value int64, needsRespace bool, afterOrder int64, err error) {
	if afterID == 0 {
		afterOrder = 0
	} else {
		afterOrder, err = orderOf(ctx, tx, d, table, afterID)
		if err != nil {
			return 0, false, 0, err
		}
	}

	succ, ok, err := successorOrder(ctx, tx, d, table, afterOrder)
	if err != nil {
		return 0, false, 0, err
	}

	if !ok {
		return afterOrder + Gap, false, afterOrder, nil
	}

	if succ-afterOrder < 2 {
		return 0, true, afterOrder, nil
	}
	return afterOrder + (succ-afterOrder)/2, false, afterOrder, nil
}

// Respace renumbers every row of table to 1000, 2000, ... in its
// current logical order, preserving relative order but restoring gaps.
// Callers must run this inside the same transaction/action as the move
// that triggered it, so it is never observable as a separate edit.
func Respace(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`select %s from %s order by %s asc`,
		d.QuoteIdent("_id"), d.QuoteIdent(table), d.QuoteIdent("_order")))
	if err != nil {
		return errkind.Wrap(errkind.Internal, "query rows to respace", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return errkind.Wrap(errkind.Internal, "scan row to respace", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errkind.Wrap(errkind.Internal, "iterate rows to respace", err)
	}
	rows.Close()

	stmt := fmt.Sprintf(`update %s set %s = %s where %s = %s`,
		d.QuoteIdent(table), d.QuoteIdent("_order"), d.BindPlaceholder(1), d.QuoteIdent("_id"), d.BindPlaceholder(2))
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, stmt, int64(i+1)*Gap, id); err != nil {
			return errkind.Wrap(errkind.Internal, "respace row", err)
		}
	}
	return nil
}

// FromAfterID returns the `_id` of the row whose `_order` is the
// greatest value less than the given row's `_order` (0 if the row is
// first). It is used to compute a Move's `from_after` for the change
// record.
func FromAfterID(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, table string, rowID int64) (int64, error) {
	rowOrder, err := orderOf(ctx, tx, d, table, rowID)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`select %s from %s where %s = (select max(%s) from %s where %s < %s)`,
		d.QuoteIdent("_id"), d.QuoteIdent(table),
		d.QuoteIdent("_order"), d.QuoteIdent("_order"), d.QuoteIdent(table), d.QuoteIdent("_order"), d.BindPlaceholder(1))
	row := tx.QueryRowContext(ctx, query, rowOrder)
	var id sql.NullInt64
	if err := row.Scan(&id); err != nil {
		return 0, errkind.Wrap(errkind.Internal, "query from_after", err)
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}
