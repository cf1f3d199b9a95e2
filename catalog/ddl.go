package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rltbl.sh/rltbl/errkind"
)

// ColumnSpec describes one user-declared column when creating a table
// programmatically (via load or demo seeding).
type ColumnSpec struct {
	Name      string
	Label     string
	Datatype  string
	Nulltype  string // non-empty means NULL is permitted for this column
	Default   string
	Structure string // "from(other_table.other_column)", or ""
}

// CreateUserTable registers table in the `table`/`column` catalog rows
// and creates its backing SQL table with the reserved `_id`/`_order`
// system columns plus the declared ones. It replaces any existing table
// of the same name (matching `load`'s create-or-replace semantics).
func (c *Catalog) CreateUserTable(ctx context.Context, tx *sql.Tx, table, path string, cols []ColumnSpec) error {
	q := c.DB.Dialect

	if _, err := tx.ExecContext(ctx, "drop table if exists "+q.QuoteIdent(table)); err != nil {
		return errkind.Wrap(errkind.Internal, "drop existing user table", err)
	}
	if _, err := tx.ExecContext(ctx, `delete from "column" where "table" = `+q.BindPlaceholder(1), table); err != nil {
		return errkind.Wrap(errkind.Internal, "clear column rows", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "create table %s (\n", q.QuoteIdent(table))
	fmt.Fprintf(&sb, "  %s,\n", q.AutoincrementColumn("_id"))
	fmt.Fprintf(&sb, "  %s integer not null\n", q.QuoteIdent("_order"))
	for _, col := range cols {
		sqlType, err := c.resolveSQLType(ctx, tx, col.Datatype)
		if err != nil {
			return err
		}
		fmt.Fprintf(&sb, ",  %s %s\n", q.QuoteIdent(col.Name), sqlType)
	}
	sb.WriteString(")")

	if _, err := tx.ExecContext(ctx, sb.String()); err != nil {
		return errkind.Wrap(errkind.Internal, "create user table", err)
	}

	_, err := tx.ExecContext(ctx,
		`insert into "table" ("table","path","type","description") values (`+ph(q, 4)+`)
		 on conflict ("table") do update set "path" = excluded."path"`,
		table, path, "", "")
	if err != nil {
		// sqlite/postgres both support ON CONFLICT; fall back to
		// delete+insert for dialects that somehow don't.
		if _, derr := tx.ExecContext(ctx, `delete from "table" where "table" = `+q.BindPlaceholder(1), table); derr != nil {
			return errkind.Wrap(errkind.Internal, "replace table row", derr)
		}
		if _, ierr := tx.ExecContext(ctx,
			`insert into "table" ("table","path","type","description") values (`+ph(q, 4)+`)`,
			table, path, "", ""); ierr != nil {
			return errkind.Wrap(errkind.Internal, "insert table row", ierr)
		}
	}

	for i, col := range cols {
		_, err := tx.ExecContext(ctx,
			`insert into "column" ("table","column","label","datatype","nulltype","default","description","structure","ordinal") values (`+ph(q, 9)+`)`,
			table, col.Name, col.Label, col.Datatype, col.Nulltype, col.Default, "", col.Structure, i)
		if err != nil {
			return errkind.Wrap(errkind.Internal, "insert column row", err)
		}
	}
	return nil
}
