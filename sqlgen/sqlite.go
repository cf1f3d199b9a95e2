package sqlgen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLite is the embedded, file-based dialect. Connection options mirror
// appview/db/db.go's sqlite3 driver string.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Open(conn string) (*sql.DB, error) {
	opts := []string{
		"_foreign_keys=1",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_busy_timeout=5000",
	}
	dsn := conn
	if !strings.Contains(conn, "?") {
		dsn = conn + "?" + strings.Join(opts, "&")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", conn, err)
	}
	// sqlite serializes writers at the file-lock level; a single
	// connection avoids spurious SQLITE_BUSY from our own pool.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (SQLite) QuoteIdent(name string) string { return quoteIdentGeneric(name) }

func (SQLite) BindPlaceholder(i int) string { return "?" }

func (SQLite) ReturningClause(column string) string {
	return " returning " + quoteIdentGeneric(column)
}

func (SQLite) AutoincrementColumn(name string) string {
	return quoteIdentGeneric(name) + " integer primary key autoincrement"
}

func (SQLite) TextCast(expr string) string {
	return "cast(" + expr + " as text)"
}

func (SQLite) SerializeWrites(ctx context.Context, tx *sql.Tx) error {
	// sqlite's own file lock (WAL + busy_timeout) already serializes
	// writers; nothing further to acquire.
	return nil
}

func (SQLite) IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if ok := asSQLiteError(err, &sqliteErr); ok {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func asSQLiteError(err error, target *sqlite3.Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if se, ok := err.(sqlite3.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
