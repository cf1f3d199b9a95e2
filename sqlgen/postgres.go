package sqlgen

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres is the client-server dialect, used for a `postgresql://...`
// connection string.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Open(conn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", conn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}
	return db, nil
}

func (Postgres) QuoteIdent(name string) string { return quoteIdentGeneric(name) }

func (Postgres) BindPlaceholder(i int) string { return fmt.Sprintf("$%d", i) }

func (Postgres) ReturningClause(column string) string {
	return " returning " + quoteIdentGeneric(column)
}

func (Postgres) AutoincrementColumn(name string) string {
	// "by default" (not "always"): the action engine explicitly inserts
	// `_id` itself on Add and reinserts a freed `_id` on undo-of-Delete,
	// which "generated always as identity" rejects outright.
	return quoteIdentGeneric(name) + " integer generated by default as identity primary key"
}

func (Postgres) TextCast(expr string) string {
	return expr + "::text"
}

// SerializeWrites takes a transaction-scoped advisory lock on a fixed
// key, since postgres has no single file lock the way sqlite does. The
// lock is released automatically when tx commits or rolls back.
func (Postgres) SerializeWrites(ctx context.Context, tx *sql.Tx) error {
	h := fnv.New64a()
	_, _ = h.Write([]byte("rltbl-write-lock"))
	key := int64(h.Sum64())
	_, err := tx.ExecContext(ctx, "select pg_advisory_xact_lock($1)", key)
	if err != nil {
		return fmt.Errorf("acquiring write lock: %w", err)
	}
	return nil
}

func (Postgres) IsTransientConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if asPgError(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") || strings.Contains(msg, "deadlock detected")
}

func asPgError(err error, target **pgconn.PgError) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if pe, ok := err.(*pgconn.PgError); ok {
			*target = pe
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
