// Package tsv implements the catalog's load/save plumbing from
// spec.md §4.6 over tab-separated text, the way the source leaves
// delimiter handling to a named collaborator but this repository
// implements directly with the standard encoding/csv package (its
// Reader/Writer both generalize past plain comma-separated values to
// any single-byte Comma, which is all TSV needs).
package tsv

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/valcheck"
)

// Delimiter is the default field separator; spec.md §4.6 fixes the
// format to tab-separated, with an optional override for callers that
// want plain CSV.
const Delimiter = '\t'

// Save writes one delimited file per catalog table that declares a
// non-empty path, ordering rows by `_order` ascending. A SQL NULL is
// written as a literal empty string when the column's nulltype is
// empty (NULL isn't permitted, so an empty string is unambiguous);
// otherwise it's written as the literal text "null", since an empty
// string is then itself a valid, distinct value.
func Save(ctx context.Context, cat *catalog.Catalog, baseDir string, delimiter rune) error {
	if delimiter == 0 {
		delimiter = Delimiter
	}
	return cat.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tables, err := tablesWithPath(ctx, tx)
		if err != nil {
			return err
		}
		for _, t := range tables {
			if err := saveTable(ctx, cat, tx, t, baseDir, delimiter); err != nil {
				return err
			}
		}
		return nil
	})
}

func tablesWithPath(ctx context.Context, tx *sql.Tx) ([]catalog.TableRow, error) {
	rows, err := tx.QueryContext(ctx, `select "table","path","type","description" from "table" where "path" <> ''`)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query tables with path", err)
	}
	defer rows.Close()
	var out []catalog.TableRow
	for rows.Next() {
		var t catalog.TableRow
		if err := rows.Scan(&t.Table, &t.Path, &t.Type, &t.Description); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan table row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func saveTable(ctx context.Context, cat *catalog.Catalog, tx *sql.Tx, t catalog.TableRow, baseDir string, delimiter rune) error {
	q := cat.DB.Dialect
	cols, err := cat.GetColumns(ctx, tx, t.Table)
	if err != nil {
		return err
	}

	selected := make([]string, len(cols))
	for i, c := range cols {
		selected[i] = q.TextCast(q.QuoteIdent(c.Column))
	}
	query := fmt.Sprintf(`select %s from %s order by %s asc`, joinCols(selected), q.QuoteIdent(t.Table), q.QuoteIdent("_order"))
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return errkind.Wrap(errkind.Internal, "query table rows", err)
	}
	defer rows.Close()

	path := t.Path
	if baseDir != "" {
		path = baseDir + "/" + path
	}
	f, err := os.Create(path)
	if err != nil {
		return errkind.Wrap(errkind.IO, "create tsv file", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delimiter

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Column
	}
	if err := w.Write(header); err != nil {
		return errkind.Wrap(errkind.IO, "write tsv header", err)
	}

	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return errkind.Wrap(errkind.Internal, "scan table row for save", err)
		}
		record := make([]string, len(cols))
		for i, c := range cols {
			if !vals[i].Valid {
				if c.Nulltype == "" {
					record[i] = ""
				} else {
					record[i] = "null"
				}
				continue
			}
			record[i] = vals[i].String
		}
		if err := w.Write(record); err != nil {
			return errkind.Wrap(errkind.IO, "write tsv row", err)
		}
	}
	if err := rows.Err(); err != nil {
		return errkind.Wrap(errkind.Internal, "iterate table rows for save", err)
	}
	w.Flush()
	return w.Error()
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// Load ingests a delimited file into table, creating or replacing it
// with columns inferred from the header, inserting one row per data
// record with `_order = i * 1000` (i 1-indexed) so later inserts have
// room to slot in without an immediate respace. If validate is set,
// every cell is checked against its (text) sql_type and a `message`
// row is recorded for malformed values, the same rule the action
// engine applies to hand-entered cells.
func Load(ctx context.Context, cat *catalog.Catalog, msgs *message.Store, user, table, path string, delimiter rune, force, validate bool) (int, error) {
	if delimiter == 0 {
		delimiter = Delimiter
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, errkind.Wrap(errkind.IO, "open tsv file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return 0, errkind.Wrap(errkind.IO, "read tsv header", err)
	}

	cols := make([]catalog.ColumnSpec, len(header))
	for i, name := range header {
		cols[i] = catalog.ColumnSpec{Name: name, Label: name, Datatype: "text", Nulltype: "empty"}
	}

	n := 0
	err = cat.DB.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if !force {
			if _, err := cat.GetTable(ctx, tx, table); err == nil {
				return errkind.New(errkind.Internal, fmt.Sprintf("table %q already exists, use --force", table))
			}
		}
		if err := cat.CreateUserTable(ctx, tx, table, path, cols); err != nil {
			return err
		}

		q := cat.DB.Dialect
		quoted := make([]string, len(header)+2)
		quoted[0] = q.QuoteIdent("_id")
		quoted[1] = q.QuoteIdent("_order")
		for i, name := range header {
			quoted[i+2] = q.QuoteIdent(name)
		}
		stmt := fmt.Sprintf(`insert into %s (%s) values (%s)`, q.QuoteIdent(table), joinCols(quoted),
			placeholders(q, len(quoted)))

		for {
			record, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return errkind.Wrap(errkind.IO, "read tsv row", err)
			}
			n++
			args := make([]any, len(quoted))
			args[0] = n
			args[1] = n * 1000
			for i := range header {
				var v string
				if i < len(record) {
					v = record[i]
				}
				args[i+2] = v
				if validate {
					if ok, rule := valcheck.CheckSQLType("text", v); !ok {
						if err := msgs.Add(ctx, tx, message.Message{
							AddedBy: user, Table: table, Row: int64(n), Column: header[i],
							Value: v, Level: message.Error, Rule: rule,
							Text: fmt.Sprintf("value %q is not a valid text", v),
						}); err != nil {
							return err
						}
					}
				}
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return errkind.Wrap(errkind.Internal, "insert loaded row", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func placeholders(d interface{ BindPlaceholder(int) string }, n int) string {
	out := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ", "
		}
		out += d.BindPlaceholder(i)
	}
	return out
}
