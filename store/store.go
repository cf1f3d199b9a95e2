// Package store is the storage façade: it owns connection lifetime,
// scopes transactions for the action engine, and offers basic table
// introspection. The packages above it run their own SQL text on the
// *sql.Tx it hands them or on the embedded *sql.DB.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/rltlog"
	"rltbl.sh/rltbl/sqlgen"
)

// DB wraps the database connection pool together with the dialect that
// renders SQL text for it, mirroring appview/db/db.go's DB wrapping
// *sql.DB.
type DB struct {
	*sql.DB
	Dialect sqlgen.Dialect
	Conn    string
}

// MaxRetries is the default number of attempts WithTx makes before
// surfacing a Conflict error, per the spec's retry policy.
const MaxRetries = 5

// Open establishes the connection for conn, selecting the dialect from
// its form (postgresql://... vs an embedded filename).
func Open(conn string) (*DB, error) {
	d := sqlgen.ByName(conn)
	sqlDB, err := d.Open(conn)
	if err != nil {
		return nil, errkind.Wrap(errkind.IO, "open database", err)
	}
	return &DB{DB: sqlDB, Dialect: d, Conn: conn}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.DB.Close()
}

// TxFunc is a unit of work run inside a single transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fn inside a transaction, acquiring the dialect's write
// serialization before calling fn, committing on success and rolling
// back on any error or panic. Transient conflicts (SQLITE_BUSY,
// postgres serialization failures) are retried with exponential
// backoff up to MaxRetries attempts; exhausting retries surfaces a
// Conflict error. The action engine never holds this transaction open
// across user-facing I/O — fn must do only database work.
func (d *DB) WithTx(ctx context.Context, fn TxFunc) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := d.runOnce(ctx, fn)
		if err != nil && d.Dialect.IsTransientConflict(unwrapRoot(err)) {
			rltlog.FromContext(ctx).Debug("retrying after transient conflict", "attempt", attempt, "error", err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries-1)
	b2 := backoff.WithContext(b, ctx)
	err := backoff.Retry(operation, b2)
	if err == nil {
		return nil
	}
	if perr, ok := err.(*backoff.PermanentError); ok {
		return perr.Err
	}
	return errkind.Wrap(errkind.Conflict, fmt.Sprintf("write conflict persisted after %d attempts", attempt), err)
}

func (d *DB) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return errkind.Wrap(errkind.IO, "begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = d.Dialect.SerializeWrites(ctx, tx); err != nil {
		return err
	}

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return errkind.Wrap(errkind.IO, "commit transaction", err)
	}
	return nil
}

func unwrapRoot(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		inner := u.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// ColumnNames introspects the column names of table, in declaration
// order, by querying zero rows and reading the result set's column
// metadata — this needs no dialect-specific information_schema query.
func (d *DB) ColumnNames(ctx context.Context, tx *sql.Tx, table string) ([]string, error) {
	q := fmt.Sprintf("select * from %s where 1 = 0", d.Dialect.QuoteIdent(table))
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, errkind.Wrap(errkind.NotFound, fmt.Sprintf("table %q", table), err)
	}
	defer rows.Close()
	return rows.Columns()
}

// TableExists reports whether table exists in the connected database.
func (d *DB) TableExists(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	_, err := d.ColumnNames(ctx, tx, table)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Now returns the current time; factored out so tests can observe it
// without reaching for a real clock dependency.
var Now = func() time.Time { return time.Now() }
