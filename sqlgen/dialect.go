// Package sqlgen is the portable SQL layer: it knows how to phrase
// identifiers, placeholders, autoincrement columns and text casts for the
// two supported back-ends, sqlite and postgres, without either of its
// callers needing to branch on which one is in use.
package sqlgen

import (
	"context"
	"database/sql"
	"strings"
)

// Dialect is the small capability interface the storage façade and every
// query builder above it are written against, instead of hard-coding SQL
// text for one back-end.
type Dialect interface {
	// Name identifies the dialect ("sqlite" or "postgres").
	Name() string

	// Open establishes the *sql.DB for the given connection string: an
	// embedded filename for sqlite, a postgresql://... URL for postgres.
	Open(conn string) (*sql.DB, error)

	// QuoteIdent quotes a table/column identifier for safe interpolation.
	QuoteIdent(name string) string

	// BindPlaceholder returns the positional parameter placeholder for
	// the i'th bound argument (1-indexed).
	BindPlaceholder(i int) string

	// ReturningClause returns the trailing SQL fragment (including
	// leading whitespace) that makes an INSERT/UPDATE return column,
	// or "" if the dialect has no such clause (the caller must then read
	// the generated value another way; changelog.Log.Append falls back
	// to LastInsertId).
	ReturningClause(column string) string

	// AutoincrementColumn returns the column type fragment for an
	// auto-incrementing integer primary key named name.
	AutoincrementColumn(name string) string

	// TextCast wraps expr so its result is cast to text.
	TextCast(expr string) string

	// SerializeWrites acquires whatever lock the dialect needs to
	// serialize concurrent writers for the duration of tx. sqlite
	// relies on its own file lock and no-ops; postgres takes a
	// transaction-scoped advisory lock.
	SerializeWrites(ctx context.Context, tx *sql.Tx) error

	// IsTransientConflict reports whether err represents a conflict the
	// caller should retry (SQLITE_BUSY, a serialization failure, ...).
	IsTransientConflict(err error) bool
}

// Placeholders renders n sequential placeholders starting at index
// `from` (1-indexed), comma-joined, e.g. "?, ?, ?" or "$1, $2, $3".
func Placeholders(d Dialect, from, n int) string {
	ph := make([]string, n)
	for i := 0; i < n; i++ {
		ph[i] = d.BindPlaceholder(from + i)
	}
	return strings.Join(ph, ", ")
}

// ByName resolves a Dialect from a connection string: a postgresql://
// or postgres:// URL selects Postgres, anything else selects SQLite.
func ByName(conn string) Dialect {
	if strings.HasPrefix(conn, "postgresql://") || strings.HasPrefix(conn, "postgres://") {
		return Postgres{}
	}
	return SQLite{}
}

// quoteIdentGeneric double-quotes an identifier the ANSI SQL way,
// doubling any embedded quote. Both dialects use this.
func quoteIdentGeneric(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
