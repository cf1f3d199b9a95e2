// Package demo generates the canonical `penguin` sample table used by
// `rltbl demo` and the acceptance scenarios in spec.md §8. Every row is
// seeded deterministically from its index rather than math/rand, so
// `demo --size N` produces byte-identical output across runs, and it
// is inserted through the same action.Engine.Add path a real `add row`
// uses, so the generated table is indistinguishable from a
// user-populated one.
package demo

import (
	"context"
	"database/sql"
	"fmt"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/errkind"
)

// User is the history "user" recorded for every row the generator adds.
const User = "demo"

var species = []string{"Adelie", "Chinstrap", "Gentoo"}
var islands = []string{"Torgersen", "Biscoe", "Dream"}
var sexes = []string{"male", "female"}

// Columns describes the `penguin` table's schema.
func Columns() []catalog.ColumnSpec {
	return []catalog.ColumnSpec{
		{Name: "species", Label: "Species", Datatype: "text", Nulltype: "empty"},
		{Name: "island", Label: "Island", Datatype: "text", Nulltype: "empty"},
		{Name: "bill_length_mm", Label: "Bill Length (mm)", Datatype: "numeric", Nulltype: "empty"},
		{Name: "bill_depth_mm", Label: "Bill Depth (mm)", Datatype: "numeric", Nulltype: "empty"},
		{Name: "flipper_length_mm", Label: "Flipper Length (mm)", Datatype: "integer", Nulltype: "empty"},
		{Name: "body_mass_g", Label: "Body Mass (g)", Datatype: "integer", Nulltype: "empty"},
		{Name: "sex", Label: "Sex", Datatype: "text", Nulltype: "empty"},
	}
}

// Generate (re)creates the `penguin` table and populates it with size
// deterministic rows. force replaces an existing table of the same
// name instead of erroring.
func Generate(ctx context.Context, cat *catalog.Catalog, eng *action.Engine, size int, force bool) error {
	if size < 0 {
		return errkind.New(errkind.ProtocolError, "demo size must be non-negative")
	}

	err := cat.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if !force {
			if _, err := cat.GetTable(ctx, tx, "penguin"); err == nil {
				return errkind.New(errkind.Internal, `table "penguin" already exists, use --force`)
			}
		}
		return cat.CreateUserTable(ctx, tx, "penguin", "", Columns())
	})
	if err != nil {
		return err
	}

	for i := 1; i <= size; i++ {
		if _, err := eng.Add(ctx, User, "penguin", rowAt(i), nil, fmt.Sprintf("Add row %d to \"penguin\"", i)); err != nil {
			return err
		}
	}
	return nil
}

// rowAt computes the deterministic field values for the i'th
// (1-indexed) demo row.
func rowAt(i int) map[string]cellval.Value {
	return map[string]cellval.Value{
		"species":           cellval.TextValue(species[(i-1)%len(species)]),
		"island":            cellval.TextValue(islands[(i-1)%len(islands)]),
		"bill_length_mm":    cellval.Value{Kind: cellval.Numeric, Numeric: 32.1 + float64(i%20)*0.7},
		"bill_depth_mm":     cellval.Value{Kind: cellval.Numeric, Numeric: 13.1 + float64(i%10)*0.4},
		"flipper_length_mm": cellval.Value{Kind: cellval.Integer, Integer: int64(172 + (i%30)*2)},
		"body_mass_g":       cellval.Value{Kind: cellval.Integer, Integer: int64(2700 + (i%40)*90)},
		"sex":               cellval.TextValue(sexes[(i-1)%len(sexes)]),
	}
}
