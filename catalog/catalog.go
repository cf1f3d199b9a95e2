// Package catalog maintains the meta-tables (table, column, datatype)
// that describe every user table and its column types, and implements
// init and user-table creation the way a schema catalog owns column
// typing. Loading and saving delimited files lives in package tsv.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/store"
)

// TableRow is one row of the `table` meta-table.
type TableRow struct {
	Table       string
	Path        string
	Type        string
	Description string
}

// ColumnRow is one row of the `column` meta-table.
//
// Structure is a VALVE-style foreign-key declaration of the form
// "from(other_table.other_column)"; empty means the column carries no
// foreign-key constraint. It is not named in the base spec's column
// row shape, which otherwise gives no way to express the "key:foreign"
// message rule — see DESIGN.md.
type ColumnRow struct {
	Table       string
	Column      string
	Label       string
	Datatype    string
	Nulltype    string
	Default     string
	Description string
	Structure   string
}

// DatatypeRow is one row of the `datatype` meta-table.
type DatatypeRow struct {
	Datatype    string
	Parent      string
	Condition   string
	SQLType     string // one of text, integer, numeric
	Description string
}

// Catalog owns the meta-tables and the system tables (history, change,
// message, migrations, cursor) layered on top of the storage façade.
type Catalog struct {
	DB *store.DB
}

func New(db *store.DB) *Catalog {
	return &Catalog{DB: db}
}

// builtinDatatypes seeds the `datatype` table with the three sql_type
// primitives every column ultimately resolves to, plus the derived
// `word` datatype.
var builtinDatatypes = []DatatypeRow{
	{Datatype: "text", SQLType: "text", Description: "any text value"},
	{Datatype: "integer", SQLType: "integer", Description: "a signed integer"},
	{Datatype: "numeric", SQLType: "numeric", Description: "a decimal number"},
	{Datatype: "word", Parent: "text", Condition: `match(/^\w+$/)`, SQLType: "text", Description: "a single word with no whitespace"},
}

// Init creates the meta-tables and an empty history/change/message/
// migrations/cursor, and seeds the built-in datatypes if the `datatype`
// table is empty. Init is idempotent: it uses "create table if not
// exists" throughout, matching appview/db/db.go's Make().
func (c *Catalog) Init(ctx context.Context) error {
	return c.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		q := c.DB.Dialect
		ddl := fmt.Sprintf(`
			create table if not exists "table" (
				"table" text primary key,
				"path" text,
				"type" text not null default '',
				"description" text not null default ''
			);
			create table if not exists "column" (
				"table" text not null,
				"column" text not null,
				"label" text not null default '',
				"datatype" text not null,
				"nulltype" text not null default '',
				"default" text not null default '',
				"description" text not null default '',
				"structure" text not null default '',
				"ordinal" integer not null default 0,
				primary key ("table", "column")
			);
			create table if not exists "datatype" (
				"datatype" text primary key,
				"parent" text not null default '',
				"condition" text not null default '',
				"sql_type" text not null,
				"description" text not null default ''
			);
			create table if not exists "history" (
				%s,
				"user" text not null,
				"table" text not null,
				"description" text not null default '',
				"timestamp" text not null,
				"action" text not null,
				"content" text not null
			);
			create table if not exists "change" (
				%s,
				"history_id" integer not null,
				"type" text not null,
				"table" text not null,
				"row" integer not null,
				"column" text,
				"value" text,
				"from_after" integer,
				"to_after" integer
			);
			create table if not exists "message" (
				%s,
				"added_by" text not null default '',
				"table" text not null,
				"row" integer not null,
				"column" text not null,
				"value" text,
				"level" text not null,
				"rule" text not null,
				"message" text not null
			);
			create table if not exists "migrations" (
				"id" integer primary key,
				"name" text unique
			);
			create table if not exists "cursor" (
				"user" text primary key,
				"table" text not null,
				"row" integer,
				"column" text,
				"updated_at" text not null
			);
		`, q.AutoincrementColumn("history_id"), q.AutoincrementColumn("change_id"), q.AutoincrementColumn("message_id"))

		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return errkind.Wrap(errkind.Internal, "create meta-tables", err)
		}

		var n int
		if err := tx.QueryRowContext(ctx, `select count(*) from "datatype"`).Scan(&n); err != nil {
			return errkind.Wrap(errkind.Internal, "count datatype rows", err)
		}
		if n == 0 {
			for _, dt := range builtinDatatypes {
				_, err := tx.ExecContext(ctx,
					`insert into "datatype" ("datatype","parent","condition","sql_type","description") values (`+ph(q, 5)+`)`,
					dt.Datatype, dt.Parent, dt.Condition, dt.SQLType, dt.Description)
				if err != nil {
					return errkind.Wrap(errkind.Internal, "seed datatype", err)
				}
			}
		}
		return nil
	})
}

func ph(d interface{ BindPlaceholder(int) string }, n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += d.BindPlaceholder(i)
	}
	return out
}

// GetTable looks up a `table` catalog row by name.
func (c *Catalog) GetTable(ctx context.Context, tx *sql.Tx, table string) (*TableRow, error) {
	row := tx.QueryRowContext(ctx, `select "table","path","type","description" from "table" where "table" = `+c.DB.Dialect.BindPlaceholder(1), table)
	var t TableRow
	if err := row.Scan(&t.Table, &t.Path, &t.Type, &t.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.New(errkind.NotFound, fmt.Sprintf("table %q", table))
		}
		return nil, errkind.Wrap(errkind.Internal, "query table row", err)
	}
	return &t, nil
}

// GetColumns returns the declared columns of table in insertion order.
func (c *Catalog) GetColumns(ctx context.Context, tx *sql.Tx, table string) ([]ColumnRow, error) {
	rows, err := tx.QueryContext(ctx, `select "table","column","label","datatype","nulltype","default","description","structure" from "column" where "table" = `+c.DB.Dialect.BindPlaceholder(1)+` order by "ordinal"`, table)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query column rows", err)
	}
	defer rows.Close()
	var out []ColumnRow
	for rows.Next() {
		var cr ColumnRow
		if err := rows.Scan(&cr.Table, &cr.Column, &cr.Label, &cr.Datatype, &cr.Nulltype, &cr.Default, &cr.Description, &cr.Structure); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan column row", err)
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// GetDatatype resolves a datatype by name.
func (c *Catalog) GetDatatype(ctx context.Context, tx *sql.Tx, name string) (*DatatypeRow, error) {
	row := tx.QueryRowContext(ctx, `select "datatype","parent","condition","sql_type","description" from "datatype" where "datatype" = `+c.DB.Dialect.BindPlaceholder(1), name)
	var dt DatatypeRow
	if err := row.Scan(&dt.Datatype, &dt.Parent, &dt.Condition, &dt.SQLType, &dt.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.New(errkind.NotFound, fmt.Sprintf("datatype %q", name))
		}
		return nil, errkind.Wrap(errkind.Internal, "query datatype row", err)
	}
	return &dt, nil
}

// SQLTypeOf resolves the sql_type of a table's column, walking up the
// datatype's parent chain if its own sql_type is empty (it never is for
// the built-ins, but user-defined datatypes may only set a condition
// and inherit sql_type from their parent).
func (c *Catalog) SQLTypeOf(ctx context.Context, tx *sql.Tx, table, column string) (string, error) {
	cols, err := c.GetColumns(ctx, tx, table)
	if err != nil {
		return "", err
	}
	for _, cr := range cols {
		if cr.Column == column {
			return c.resolveSQLType(ctx, tx, cr.Datatype)
		}
	}
	return "", errkind.New(errkind.NotFound, fmt.Sprintf("column %q.%q", table, column))
}

// ResolveSQLType walks datatype's parent chain until it finds a
// non-empty sql_type, the way the schema catalog resolves a column's
// storage type from its declared (possibly derived) datatype.
func (c *Catalog) ResolveSQLType(ctx context.Context, tx *sql.Tx, datatype string) (string, error) {
	return c.resolveSQLType(ctx, tx, datatype)
}

func (c *Catalog) resolveSQLType(ctx context.Context, tx *sql.Tx, datatype string) (string, error) {
	seen := map[string]bool{}
	for datatype != "" && !seen[datatype] {
		seen[datatype] = true
		dt, err := c.GetDatatype(ctx, tx, datatype)
		if err != nil {
			return "", err
		}
		if dt.SQLType != "" {
			return dt.SQLType, nil
		}
		datatype = dt.Parent
	}
	return "", errkind.New(errkind.Internal, fmt.Sprintf("datatype %q has no resolvable sql_type", datatype))
}
