// Package message implements the message store: diagnostics attached to
// a (table,row,column,value) tuple, independent of the row's lifetime.
package message

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// Level is the severity of a message.
type Level string

const (
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Message is one `message` record.
type Message struct {
	ID      int64
	AddedBy string
	Table   string
	Row     int64
	Column  string
	Value   string
	Level   Level
	Rule    string
	Text    string
}

// Store provides the add/delete operations over the `message` table.
type Store struct {
	Dialect sqlgen.Dialect
}

func New(d sqlgen.Dialect) *Store { return &Store{Dialect: d} }

// Add attaches m to its (table,row,column) tuple. The message persists
// independently of the row's future deletion.
func (s *Store) Add(ctx context.Context, tx *sql.Tx, m Message) error {
	q := s.Dialect
	cols := `"added_by","table","row","column","value","level","rule","message"`
	stmt := fmt.Sprintf(`insert into "message" (%s) values (%s)`, cols, sqlgen.Placeholders(q, 1, 8))
	_, err := tx.ExecContext(ctx, stmt, m.AddedBy, m.Table, m.Row, m.Column, m.Value, string(m.Level), m.Rule, m.Text)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "insert message", err)
	}
	return nil
}

// Delete removes messages matching the given filters. An empty column
// deletes all columns for the row; an empty row deletes all rows for
// the table; rulePattern, if non-empty, is matched with SQL LIKE;
// user, if non-empty, is matched exactly. All non-empty filters are
// ANDed together, which is how deletion "cascades by specificity".
func (s *Store) Delete(ctx context.Context, tx *sql.Tx, table string, row *int64, column, rulePattern, user string) (int64, error) {
	q := s.Dialect
	var where []string
	var args []any

	where = append(where, `"table" = `+q.BindPlaceholder(len(args)+1))
	args = append(args, table)

	if row != nil {
		where = append(where, `"row" = `+q.BindPlaceholder(len(args)+1))
		args = append(args, *row)
	}
	if column != "" {
		where = append(where, `"column" = `+q.BindPlaceholder(len(args)+1))
		args = append(args, column)
	}
	if rulePattern != "" {
		where = append(where, `"rule" like `+q.BindPlaceholder(len(args)+1))
		args = append(args, rulePattern)
	}
	if user != "" {
		where = append(where, `"added_by" = `+q.BindPlaceholder(len(args)+1))
		args = append(args, user)
	}

	stmt := `delete from "message" where ` + strings.Join(where, " and ")
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, errkind.Wrap(errkind.Internal, "delete messages", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ForCell returns every message recorded against (table,row,column).
func (s *Store) ForCell(ctx context.Context, tx *sql.Tx, table string, row int64, column string) ([]Message, error) {
	q := s.Dialect
	rows, err := tx.QueryContext(ctx,
		`select "message_id","added_by","table","row","column","value","level","rule","message" from "message"
		 where "table" = `+q.BindPlaceholder(1)+` and "row" = `+q.BindPlaceholder(2)+` and "column" = `+q.BindPlaceholder(3),
		table, row, column)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ForRow returns every message recorded against any column of
// (table,row), grouped implicitly by scan order.
func (s *Store) ForRow(ctx context.Context, tx *sql.Tx, table string, row int64) ([]Message, error) {
	q := s.Dialect
	rows, err := tx.QueryContext(ctx,
		`select "message_id","added_by","table","row","column","value","level","rule","message" from "message"
		 where "table" = `+q.BindPlaceholder(1)+` and "row" = `+q.BindPlaceholder(2),
		table, row)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query messages", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		var lvl, col, val sql.NullString
		if err := rows.Scan(&m.ID, &m.AddedBy, &m.Table, &m.Row, &col, &val, &lvl, &m.Rule, &m.Text); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan message", err)
		}
		m.Column = col.String
		m.Value = val.String
		m.Level = Level(lvl.String)
		out = append(out, m)
	}
	return out, rows.Err()
}
