// Package selectx renders and executes the paginated, filtered, joined
// reads the CLI and HTTP surfaces use to list table rows, folding in
// per-cell message annotations for the default view.
package selectx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/sqlgen"
)

// Operator is one of the filter comparison operators from spec.md §4.4.
type Operator string

const (
	Eq         Operator = "eq"
	Ne         Operator = "ne"
	Lt         Operator = "lt"
	Le         Operator = "le"
	Gt         Operator = "gt"
	Ge         Operator = "ge"
	Like       Operator = "like"
	In         Operator = "in"
	IsNull     Operator = "is_null"
	IsNotNull  Operator = "is_not_null"
	InSubquery Operator = "in_subquery"
)

// Filter is one `(column, operator, value)` read constraint. Value
// holds a single scalar for most operators, a slice for In, and is
// ignored for IsNull/IsNotNull. Sub carries the nested Select for
// InSubquery, rendered as `column IN (SELECT ...)`.
type Filter struct {
	Column   string
	Operator Operator
	Value    any
	Sub      *Select
}

// Join is a single `join <table> on <condition>` clause. Condition is
// trusted SQL text supplied by the caller (mirroring the rest of this
// package's query builders, which never accept raw user SQL directly —
// callers build Condition from identifiers they already validated).
type Join struct {
	Table     string
	Condition string
}

// OrderTerm is one `order by` term.
type OrderTerm struct {
	Column string
	Desc   bool
}

// View selects how Select's projected columns are rendered.
type View string

const (
	// DefaultView selects the table's declared columns verbatim and
	// folds in a `_message` field per row.
	DefaultView View = ""
	// TextView casts every projected column to text, for uniform
	// tabular display.
	TextView View = "text"
)

// Select is the logical read spec described in spec.md §4.4.
type Select struct {
	Table      string
	View       View
	Projection []string // empty means every declared column
	Joins      []Join
	Filters    []Filter
	OrderBy    []OrderTerm
	Limit      int
	Offset     int
}

// Row is one result row: `_id`/`_order` plus its projected cells, and
// — for the default view — its per-column messages.
type Row struct {
	ID       int64
	Order    int64
	Cells    map[string]any
	Messages map[string][]message.Message
}

// Result is the full page of rows plus the columns actually selected.
type Result struct {
	Columns []string
	Rows    []Row
}

// Run executes sel against table and returns its page of rows. For
// the default view it issues one extra per-row query against the
// message store rather than a dialect-specific JSON aggregate, so the
// same code runs unmodified against sqlite and postgres.
func Run(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, cat *catalog.Catalog, msgs *message.Store, sel Select) (*Result, error) {
	cols, err := cat.GetColumns(ctx, tx, sel.Table)
	if err != nil {
		return nil, err
	}
	projection := sel.Projection
	if len(projection) == 0 {
		projection = make([]string, len(cols))
		for i, c := range cols {
			projection[i] = c.Column
		}
	}

	query, args, err := build(d, sel, projection, 1, true)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "execute select", err)
	}
	defer rows.Close()

	resultCols := append([]string{"_id", "_order"}, projection...)
	out := &Result{Columns: resultCols}
	for rows.Next() {
		vals := make([]any, len(resultCols))
		ptrs := make([]any, len(resultCols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan select row", err)
		}

		r := Row{Cells: make(map[string]any, len(projection))}
		r.ID, _ = vals[0].(int64)
		r.Order, _ = vals[1].(int64)
		for i, col := range projection {
			r.Cells[col] = vals[i+2]
		}
		out.Rows = append(out.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errkind.Wrap(errkind.Internal, "iterate select rows", err)
	}

	if sel.View == DefaultView && msgs != nil {
		for i := range out.Rows {
			byCol, err := rowMessagesByColumn(ctx, tx, msgs, sel.Table, out.Rows[i].ID)
			if err != nil {
				return nil, err
			}
			out.Rows[i].Messages = byCol
		}
	}
	return out, nil
}

func rowMessagesByColumn(ctx context.Context, tx *sql.Tx, msgs *message.Store, table string, row int64) (map[string][]message.Message, error) {
	all, err := msgs.ForRow(ctx, tx, table, row)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	out := make(map[string][]message.Message)
	for _, m := range all {
		out[m.Column] = append(out[m.Column], m)
	}
	return out, nil
}

// build renders sel's SQL text. argStart is the 1-indexed bind
// position of the first placeholder this call will emit — callers
// nesting a Select (InSubquery) pass the outer query's current
// position so every placeholder across the whole statement stays
// globally sequential, which postgres's positional `$N` params
// require (sqlite's `?` placeholders don't care, but the same builder
// serves both dialects). includeRowIdentity prepends `_id`/`_order` to
// the projection; a nested InSubquery select must project exactly the
// one column the outer `IN (...)` compares against, so it passes false.
func build(d sqlgen.Dialect, sel Select, projection []string, argStart int, includeRowIdentity bool) (string, []any, error) {
	cast := func(expr string) string { return expr }
	if sel.View == TextView {
		cast = d.TextCast
	}

	var selected []string
	if includeRowIdentity {
		selected = []string{d.QuoteIdent("_id"), d.QuoteIdent("_order")}
	}
	for _, col := range projection {
		selected = append(selected, cast(d.QuoteIdent(col)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "select %s from %s", strings.Join(selected, ", "), d.QuoteIdent(sel.Table))
	for _, j := range sel.Joins {
		fmt.Fprintf(&sb, " join %s on %s", d.QuoteIdent(j.Table), j.Condition)
	}

	var args []any
	if len(sel.Filters) > 0 {
		var clauses []string
		for _, f := range sel.Filters {
			clause, fargs, err := renderFilter(d, f, argStart+len(args))
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			args = append(args, fargs...)
		}
		sb.WriteString(" where ")
		sb.WriteString(strings.Join(clauses, " and "))
	}

	sb.WriteString(" order by ")
	if len(sel.OrderBy) == 0 {
		sb.WriteString(d.QuoteIdent("_order") + " asc")
	} else {
		terms := make([]string, len(sel.OrderBy))
		for i, t := range sel.OrderBy {
			dir := "asc"
			if t.Desc {
				dir = "desc"
			}
			terms[i] = d.QuoteIdent(t.Column) + " " + dir
		}
		sb.WriteString(strings.Join(terms, ", "))
	}

	if sel.Limit > 0 {
		fmt.Fprintf(&sb, " limit %d", sel.Limit)
	}
	if sel.Offset > 0 {
		fmt.Fprintf(&sb, " offset %d", sel.Offset)
	}

	return sb.String(), args, nil
}
