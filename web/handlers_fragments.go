package web

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/valcheck"
)

// GetCellOptions handles `GET /cell-options/{T}/{row}/{col}?input=…`:
// an HTML fragment listing up to 20 distinct values of the foreign
// column that start with input, when the column carries a
// "from(table.column)" structure. Any other column gets an empty list.
func (s *Server) GetCellOptions(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	column := chi.URLParam(r, "column")
	input := r.URL.Query().Get("input")

	var options []string
	err := s.DB.WithTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
		cols, err := s.Catalog.GetColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		var structure string
		found := false
		for _, c := range cols {
			if c.Column == column {
				structure = c.Structure
				found = true
				break
			}
		}
		if !found {
			return errkind.New(errkind.NotFound, fmt.Sprintf("column %q in %q", column, table))
		}
		refTable, refColumn, ok := valcheck.ParseStructure(structure)
		if !ok {
			return nil
		}
		options, err = s.distinctValues(ctx, tx, refTable, refColumn, input)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}

	var sb strings.Builder
	sb.WriteString(`<ul class="cell-options">`)
	for _, o := range options {
		fmt.Fprintf(&sb, `<li data-value="%s">%s</li>`, html.EscapeString(o), html.EscapeString(o))
	}
	sb.WriteString(`</ul>`)
	writeHTML(w, sb.String())
}

func (s *Server) distinctValues(ctx context.Context, tx *sql.Tx, table, column, prefix string) ([]string, error) {
	q := s.DB.Dialect
	query := fmt.Sprintf(`select distinct %s from %s where %s like %s order by %s limit 20`,
		q.QuoteIdent(column), q.QuoteIdent(table), q.QuoteIdent(column), q.BindPlaceholder(1), q.QuoteIdent(column))
	rows, err := tx.QueryContext(ctx, query, prefix+"%")
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query cell options", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan cell option", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetRowMenu handles `GET /row-menu`: the context menu fragment a
// row's gutter opens, offering Delete and Move.
func (s *Server) GetRowMenu(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	row := r.URL.Query().Get("row")
	writeHTML(w, fmt.Sprintf(`<ul class="row-menu">
<li data-action="delete" data-table="%s" data-row="%s">Delete row</li>
<li data-action="move" data-table="%s" data-row="%s">Move row&hellip;</li>
</ul>`, html.EscapeString(table), html.EscapeString(row), html.EscapeString(table), html.EscapeString(row)))
}

// GetCellMenu handles `GET /cell-menu`: a fragment listing the
// validation messages recorded against the cell.
func (s *Server) GetCellMenu(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	column := r.URL.Query().Get("column")
	rowStr := r.URL.Query().Get("row")
	row, _ := strconv.ParseInt(rowStr, 10, 64)

	var messages []string
	if table != "" && column != "" && row != 0 {
		err := s.DB.WithTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
			ms, err := s.Messages.ForCell(ctx, tx, table, row, column)
			if err != nil {
				return err
			}
			for _, m := range ms {
				messages = append(messages, fmt.Sprintf("%s: %s", m.Rule, m.Text))
			}
			return nil
		})
		if err != nil {
			writeError(w, err)
			return
		}
	}

	var sb strings.Builder
	sb.WriteString(`<ul class="cell-menu">`)
	for _, m := range messages {
		fmt.Fprintf(&sb, `<li class="message">%s</li>`, html.EscapeString(m))
	}
	sb.WriteString(`</ul>`)
	writeHTML(w, sb.String())
}

// GetColumnMenu handles `GET /column-menu`: the per-column header menu
// (sort ascending, sort descending).
func (s *Server) GetColumnMenu(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	column := r.URL.Query().Get("column")
	writeHTML(w, fmt.Sprintf(`<ul class="column-menu">
<li data-action="sort-asc" data-table="%s" data-column="%s">Sort ascending</li>
<li data-action="sort-desc" data-table="%s" data-column="%s">Sort descending</li>
</ul>`, html.EscapeString(table), html.EscapeString(column), html.EscapeString(table), html.EscapeString(column)))
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}
