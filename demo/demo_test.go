package demo

import (
	"context"
	"testing"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/store"
)

func TestGenerateIsDeterministic(t *testing.T) {
	ctx := context.Background()

	build := func(t *testing.T) []string {
		db, err := store.Open(":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		defer db.Close()
		cat := catalog.New(db)
		if err := cat.Init(ctx); err != nil {
			t.Fatalf("init catalog: %v", err)
		}
		eng := action.New(db, cat, nil)
		if err := Generate(ctx, cat, eng, 10, false); err != nil {
			t.Fatalf("generate: %v", err)
		}
		rows, err := db.QueryContext(ctx, `select "species","island","sex" from "penguin" order by "_order" asc`)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var sp, is, sx string
			if err := rows.Scan(&sp, &is, &sx); err != nil {
				t.Fatalf("scan: %v", err)
			}
			out = append(out, sp+"/"+is+"/"+sx)
		}
		return out
	}

	a := build(t)
	b := build(t)
	if len(a) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d not deterministic: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestGenerateRefusesWithoutForceWhenExists(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	ctx := context.Background()
	cat := catalog.New(db)
	if err := cat.Init(ctx); err != nil {
		t.Fatalf("init catalog: %v", err)
	}
	eng := action.New(db, cat, nil)

	if err := Generate(ctx, cat, eng, 3, false); err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if err := Generate(ctx, cat, eng, 3, false); err == nil {
		t.Fatal("expected error on second generate without --force")
	}
	if err := Generate(ctx, cat, eng, 5, true); err != nil {
		t.Fatalf("generate with force: %v", err)
	}
}
