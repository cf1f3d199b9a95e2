package selectx

import (
	"context"
	"database/sql"
	"testing"

	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/store"
)

func newTestDB(t *testing.T) (*store.DB, *catalog.Catalog) {
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
		if err := cat.CreateUserTable(ctx, tx, "penguin", "", []catalog.ColumnSpec{
			{Name: "name", Datatype: "text"},
			{Name: "wing_length", Datatype: "integer"},
		}); err != nil {
			return err
		}
		for i, row := range []struct {
			name string
			wing int
		}{{"Alice", 190}, {"Bob", 210}, {"Carol", 175}} {
			if _, err := tx.ExecContext(ctx,
				`insert into "penguin" ("_id","_order","name","wing_length") values (?,?,?,?)`,
				i+1, (i+1)*1000, row.name, row.wing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed penguin table: %v", err)
	}
	return db, cat
}

func TestRunDefaultOrderAndProjection(t *testing.T) {
	db, cat := newTestDB(t)
	ctx := context.Background()

	var result *Result
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		result, err = Run(ctx, tx, db.Dialect, cat, message.New(db.Dialect), Select{Table: "penguin"})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Cells["name"] != "Alice" || result.Rows[2].Cells["name"] != "Carol" {
		t.Fatalf("rows not in _order: %+v", result.Rows)
	}
}

func TestRunFilterEqAndGt(t *testing.T) {
	db, cat := newTestDB(t)
	ctx := context.Background()

	var result *Result
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		result, err = Run(ctx, tx, db.Dialect, cat, nil, Select{
			Table:   "penguin",
			Filters: []Filter{{Column: "wing_length", Operator: Gt, Value: int64(180)}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows with wing_length > 180, got %d: %+v", len(result.Rows), result.Rows)
	}
}

func TestRunFilterIn(t *testing.T) {
	db, cat := newTestDB(t)
	ctx := context.Background()

	var result *Result
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		result, err = Run(ctx, tx, db.Dialect, cat, nil, Select{
			Table:   "penguin",
			Filters: []Filter{{Column: "name", Operator: In, Value: []any{"Alice", "Carol"}}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
}

func TestRunFilterInSubquery(t *testing.T) {
	db, cat := newTestDB(t)
	ctx := context.Background()

	var result *Result
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		result, err = Run(ctx, tx, db.Dialect, cat, nil, Select{
			Table: "penguin",
			Filters: []Filter{{
				Column:   "name",
				Operator: InSubquery,
				Sub: &Select{
					Table:      "penguin",
					Projection: []string{"name"},
					Filters:    []Filter{{Column: "wing_length", Operator: Gt, Value: int64(180)}},
				},
			}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows with wing_length > 180 via subquery, got %d: %+v", len(result.Rows), result.Rows)
	}
}

func TestRunTextViewCasts(t *testing.T) {
	db, cat := newTestDB(t)
	ctx := context.Background()

	var result *Result
	err := db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		result, err = Run(ctx, tx, db.Dialect, cat, nil, Select{Table: "penguin", View: TextView})
		return err
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	switch result.Rows[0].Cells["wing_length"].(type) {
	case string, []byte:
	default:
		t.Fatalf("expected wing_length cast to text, got %T", result.Rows[0].Cells["wing_length"])
	}
}
