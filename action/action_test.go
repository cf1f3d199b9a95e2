package action

import (
	"context"
	"database/sql"
	"testing"

	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.DB) {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	cat := catalog.New(db)
	if err := cat.Init(ctx); err != nil {
		t.Fatalf("init catalog: %v", err)
	}
	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return cat.CreateUserTable(ctx, tx, "penguin", "", []catalog.ColumnSpec{
			{Name: "name", Label: "Name", Datatype: "text", Nulltype: "empty"},
			{Name: "species", Label: "Species", Datatype: "text", Nulltype: "empty", Structure: "from(species.name)"},
		})
	})
	if err != nil {
		t.Fatalf("create penguin table: %v", err)
	}
	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return cat.CreateUserTable(ctx, tx, "species", "", []catalog.ColumnSpec{
			{Name: "name", Label: "Name", Datatype: "text"},
		})
	})
	if err != nil {
		t.Fatalf("create species table: %v", err)
	}

	return New(db, cat, nil), db
}

func namesInOrder(t *testing.T, db *store.DB) []string {
	t.Helper()
	rows, err := db.QueryContext(context.Background(), `select "name" from "penguin" order by "_order" asc`)
	if err != nil {
		t.Fatalf("query names: %v", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan name: %v", err)
		}
		out = append(out, n)
	}
	return out
}

func assertNames(t *testing.T, db *store.DB, want ...string) {
	t.Helper()
	got := namesInOrder(t, db)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestAddAppendsInOrder(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if _, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{"name": cellval.TextValue(name)}, nil, ""); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	assertNames(t, db, "Alice", "Bob", "Carol")
}

func TestUpdateChangesCellAndIsUndoable(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{"name": cellval.TextValue("Alice")}, nil, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := eng.Update(ctx, "user1", "penguin", r.RowID, map[string]cellval.Value{"name": cellval.TextValue("Alicia")}, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	assertNames(t, db, "Alicia")

	if _, err := eng.Undo(ctx, "user1"); err != nil {
		t.Fatalf("undo: %v", err)
	}
	assertNames(t, db, "Alice")

	if _, err := eng.Redo(ctx, "user1"); err != nil {
		t.Fatalf("redo: %v", err)
	}
	assertNames(t, db, "Alicia")
}

func TestMoveAndUndo(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		r, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{"name": cellval.TextValue(name)}, nil, "")
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		ids = append(ids, r.RowID)
	}

	if _, err := eng.Move(ctx, "user1", "penguin", ids[0], ids[2], ""); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertNames(t, db, "Bob", "Carol", "Alice")

	if _, err := eng.Undo(ctx, "user1"); err != nil {
		t.Fatalf("undo move: %v", err)
	}
	assertNames(t, db, "Alice", "Bob", "Carol")

	if _, err := eng.Redo(ctx, "user1"); err != nil {
		t.Fatalf("redo move: %v", err)
	}
	assertNames(t, db, "Bob", "Carol", "Alice")
}

func TestSelfMoveIsZeroEffectButRecorded(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{"name": cellval.TextValue("Alice")}, nil, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := eng.Move(ctx, "user1", "penguin", r.RowID, r.RowID, ""); err != nil {
		t.Fatalf("self move: %v", err)
	}
	assertNames(t, db, "Alice")

	history, err := eng.Log.ForUser(ctx, mustTx(t, db), "user1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 { // Add, Move
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
}

func TestDeleteThenUndoRestoresRowAtSameID(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		r, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{"name": cellval.TextValue(name)}, nil, "")
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		ids = append(ids, r.RowID)
	}

	if _, err := eng.Delete(ctx, "user1", "penguin", ids[1], ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertNames(t, db, "Alice", "Carol")

	if _, err := eng.Undo(ctx, "user1"); err != nil {
		t.Fatalf("undo delete: %v", err)
	}
	assertNames(t, db, "Alice", "Bob", "Carol")

	var id int64
	if err := db.QueryRowContext(ctx, `select "_id" from "penguin" where "name" = 'Bob'`).Scan(&id); err != nil {
		t.Fatalf("query restored id: %v", err)
	}
	if id != ids[1] {
		t.Fatalf("restored row id = %d, want %d", id, ids[1])
	}
}

func TestForeignKeyViolationRecordsMessage(t *testing.T) {
	eng, db := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.Add(ctx, "user1", "penguin", map[string]cellval.Value{
		"name": cellval.TextValue("Alice"), "species": cellval.TextValue("emperor"),
	}, nil, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var msgs []message.Message
	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		msgs, err = eng.Messages.ForCell(ctx, tx, "penguin", r.RowID, "species")
		return err
	})
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Rule != "key:foreign" {
		t.Fatalf("expected one key:foreign message, got %+v", msgs)
	}

	// Now register "emperor" as a valid species and update the cell;
	// the prior violation should be cleared.
	if _, err := eng.Add(ctx, "user1", "species", map[string]cellval.Value{"name": cellval.TextValue("emperor")}, nil, ""); err != nil {
		t.Fatalf("add species: %v", err)
	}
	if _, err := eng.Update(ctx, "user1", "penguin", r.RowID, map[string]cellval.Value{"species": cellval.TextValue("emperor")}, ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		msgs, err = eng.Messages.ForCell(ctx, tx, "penguin", r.RowID, "species")
		return err
	})
	if err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages after valid update, got %+v", msgs)
	}
}

func mustTx(t *testing.T, db *store.DB) *sql.Tx {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}
