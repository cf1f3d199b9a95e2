// Package changelog implements the append-only change log: `history`
// and `change` records, and the per-user undo/redo stacks materialized
// as a walk over `history` rather than a graph structure, per the
// design note in spec.md §9.
package changelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// ActionKind is the `history.action` field.
type ActionKind string

const (
	Do   ActionKind = "Do"
	Undo ActionKind = "Undo"
	Redo ActionKind = "Redo"
)

// ChangeType is the `change.type` field.
type ChangeType string

const (
	Add    ChangeType = "Add"
	Delete ChangeType = "Delete"
	Update ChangeType = "Update"
	Move   ChangeType = "Move"
)

// Change is one `change` record; a single history entry can hold
// several of these to describe one user-visible action (e.g. a Move
// that triggered a re-spacing pass).
type Change struct {
	Type      ChangeType `json:"type"`
	Table     string     `json:"table"`
	Row       int64      `json:"row"`
	Column    string     `json:"column,omitempty"`
	Value     *string    `json:"value,omitempty"`
	Before    *string    `json:"before,omitempty"`
	FromAfter *int64     `json:"from_after,omitempty"`
	ToAfter   *int64     `json:"to_after,omitempty"`
}

// History is one `history` record.
type History struct {
	ID          int64
	User        string
	Table       string
	Description string
	Timestamp   time.Time
	Action      ActionKind
	Content     []Change
}

// Log provides the append/read operations over `history` and `change`.
type Log struct {
	Dialect sqlgen.Dialect
}

func New(d sqlgen.Dialect) *Log { return &Log{Dialect: d} }

// Append writes one history record (with its change set) inside tx and
// returns the assigned history_id. This must run in the same
// transaction as the user-table mutation it describes, so a reader
// that observes the mutation also observes the change record.
func (l *Log) Append(ctx context.Context, tx *sql.Tx, user, table, description string, action ActionKind, changes []Change) (int64, error) {
	q := l.Dialect
	content, err := json.Marshal(changes)
	if err != nil {
		return 0, errkind.Wrap(errkind.Internal, "marshal change content", err)
	}

	var historyID int64
	insertHistory := `insert into "history" ("user","table","description","timestamp","action","content") values (` +
		sqlgen.Placeholders(q, 1, 6) + `)`
	if rc := q.ReturningClause("history_id"); rc != "" {
		row := tx.QueryRowContext(ctx, insertHistory+rc, user, table, description, nowText(), string(action), string(content))
		if err := row.Scan(&historyID); err != nil {
			return 0, errkind.Wrap(errkind.Internal, "insert history row", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, insertHistory, user, table, description, nowText(), string(action), string(content))
		if err != nil {
			return 0, errkind.Wrap(errkind.Internal, "insert history row", err)
		}
		historyID, err = res.LastInsertId()
		if err != nil {
			return 0, errkind.Wrap(errkind.Internal, "read history_id", err)
		}
	}

	for _, c := range changes {
		_, err := tx.ExecContext(ctx,
			`insert into "change" ("history_id","type","table","row","column","value","from_after","to_after") values (`+sqlgen.Placeholders(q, 1, 8)+`)`,
			historyID, string(c.Type), c.Table, c.Row, nullable(c.Column), c.Value, c.FromAfter, c.ToAfter)
		if err != nil {
			return 0, errkind.Wrap(errkind.Internal, "insert change row", err)
		}
	}

	return historyID, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowText() string { return time.Now().UTC().Format(time.RFC3339) }

// ForUser returns every history record for user in ascending
// history_id order.
func (l *Log) ForUser(ctx context.Context, tx *sql.Tx, user string) ([]History, error) {
	q := l.Dialect
	rows, err := tx.QueryContext(ctx,
		`select "history_id","user","table","description","timestamp","action","content" from "history" where "user" = `+q.BindPlaceholder(1)+` order by "history_id" asc`,
		user)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query history", err)
	}
	defer rows.Close()

	var out []History
	for rows.Next() {
		var h History
		var ts, content string
		var action string
		if err := rows.Scan(&h.ID, &h.User, &h.Table, &h.Description, &ts, &action, &content); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan history row", err)
		}
		h.Action = ActionKind(action)
		h.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if err := json.Unmarshal([]byte(content), &h.Content); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "unmarshal history content", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// Stacks replays a user's history to reconstruct the undo and redo
// stacks as described in spec.md §4.2 rule 4. Both slices are ordered
// oldest-first; the "top" of each stack is the last element.
func Stacks(history []History) (undo, redo []History) {
	for _, h := range history {
		switch h.Action {
		case Do:
			redo = nil
			undo = append(undo, h)
		case Undo:
			if len(undo) > 0 {
				popped := undo[len(undo)-1]
				undo = undo[:len(undo)-1]
				redo = append(redo, popped)
			}
		case Redo:
			if len(redo) > 0 {
				popped := redo[len(redo)-1]
				redo = redo[:len(redo)-1]
				undo = append(undo, popped)
			}
		}
	}
	return undo, redo
}

// UndoCandidate returns the history record that would be reversed by
// the next Undo, or nil if the undo stack is empty.
func UndoCandidate(history []History) *History {
	undo, _ := Stacks(history)
	if len(undo) == 0 {
		return nil
	}
	h := undo[len(undo)-1]
	return &h
}

// RedoCandidate returns the history record that would be reapplied by
// the next Redo, or nil if the redo stack is empty.
func RedoCandidate(history []History) *History {
	_, redo := Stacks(history)
	if len(redo) == 0 {
		return nil
	}
	h := redo[len(redo)-1]
	return &h
}

// DisplayLine is one rendered line of `rltbl history`'s output.
type DisplayLine struct {
	Marker string // "▲", "▼", or " "
	Text   string
	Entry  History
}

// Render produces the wire format from spec.md §6: history printed most
// recent first, with at most one marked line — ▼ on the next undo
// candidate when a redo is pending, ▲ on the most recent undoable
// action when none is, and no marked line when the undo stack is empty.
func Render(history []History) []DisplayLine {
	undo, redo := Stacks(history)

	var markID int64 = -1
	marker := " "
	if len(undo) > 0 {
		markID = undo[len(undo)-1].ID
		if len(redo) > 0 {
			marker = "▼"
		} else {
			marker = "▲"
		}
	}

	lines := make([]DisplayLine, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		m := " "
		if h.ID == markID {
			m = marker
		}
		lines = append(lines, DisplayLine{Marker: m, Text: h.Description, Entry: h})
	}
	return lines
}
