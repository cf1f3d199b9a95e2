package web

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/selectx"
)

const defaultPageSize = 100

// tablePage is the JSON body shape from spec.md §6:
// {site, page, result:{table,columns,range,rows,select}}.
type tablePage struct {
	Site   string      `json:"site"`
	Page   pageInfo    `json:"page"`
	Result tableResult `json:"result"`
}

type pageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type tableResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Range   [2]int           `json:"range"`
	Rows    []tableResultRow `json:"rows"`
	Select  selectSummary    `json:"select"`
}

type tableResultRow struct {
	ID       int64                     `json:"_id"`
	Order    int64                     `json:"_order"`
	Cells    map[string]any            `json:"cells"`
	Messages map[string][]messageWire  `json:"messages,omitempty"`
}

type messageWire struct {
	Level string `json:"level"`
	Rule  string `json:"rule"`
	Text  string `json:"message"`
}

type selectSummary struct {
	Filters []string `json:"filters,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

func (s *Server) buildSelect(r *http.Request, table string) (selectx.Select, []string, error) {
	q := r.URL.Query()
	filters, changeIDFloor, err := parseFilters(q)
	if err != nil {
		return selectx.Select{}, nil, err
	}
	limit, err := parseIntParam(q, "limit", defaultPageSize)
	if err != nil {
		return selectx.Select{}, nil, err
	}
	offset, err := parseIntParam(q, "offset", 0)
	if err != nil {
		return selectx.Select{}, nil, err
	}

	sel := selectx.Select{Table: table, Filters: filters, Limit: limit, Offset: offset}

	var summary []string
	for _, f := range filters {
		summary = append(summary, fmt.Sprintf("%s.%s", f.Column, f.Operator))
	}

	if changeIDFloor > 0 {
		ids, err := s.rowsChangedAfter(r.Context(), table, changeIDFloor)
		if err != nil {
			return selectx.Select{}, nil, err
		}
		vals := make([]any, len(ids))
		for i, id := range ids {
			vals[i] = id
		}
		sel.Filters = append(sel.Filters, selectx.Filter{Column: "_id", Operator: selectx.In, Value: vals})
		summary = append(summary, fmt.Sprintf("_change_id.gt.%d", changeIDFloor))
	}

	return sel, summary, nil
}

// rowsChangedAfter returns the distinct rows of table touched by any
// change recorded after changeID, for the `_change_id=gt.N` filter —
// computed as a plain query against "change" rather than through
// selectx, since "change" is a system table with no catalog entry.
func (s *Server) rowsChangedAfter(ctx context.Context, table string, changeID int) ([]int64, error) {
	q := s.DB.Dialect
	query := fmt.Sprintf(`select distinct %s from %s where %s = %s and %s > %s`,
		q.QuoteIdent("row"), q.QuoteIdent("change"),
		q.QuoteIdent("table"), q.BindPlaceholder(1),
		q.QuoteIdent("change_id"), q.BindPlaceholder(2))
	rows, err := s.DB.QueryContext(ctx, query, table, changeID)
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "query changed rows", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errkind.Wrap(errkind.Internal, "scan changed row", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Server) runSelect(r *http.Request, table string) (*selectx.Result, []string, int, int, error) {
	sel, summary, err := s.buildSelect(r, table)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	var result *selectx.Result
	err = s.DB.WithTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
		res, err := selectx.Run(ctx, tx, s.DB.Dialect, s.Catalog, s.Messages, sel)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, nil, 0, 0, err
	}
	return result, summary, sel.Limit, sel.Offset, nil
}

// dataColumns strips the "_id"/"_order" system columns selectx.Result
// always prefixes its column list with — they're surfaced on each row
// as ID/Order instead.
func dataColumns(res *selectx.Result) []string {
	if len(res.Columns) <= 2 {
		return nil
	}
	return res.Columns[2:]
}

func toWireRows(res *selectx.Result) []tableResultRow {
	rows := make([]tableResultRow, len(res.Rows))
	for i, row := range res.Rows {
		wr := tableResultRow{ID: row.ID, Order: row.Order, Cells: row.Cells}
		if len(row.Messages) > 0 {
			wr.Messages = make(map[string][]messageWire, len(row.Messages))
			for col, msgs := range row.Messages {
				ws := make([]messageWire, len(msgs))
				for j, m := range msgs {
					ws[j] = messageWire{Level: string(m.Level), Rule: m.Rule, Text: m.Text}
				}
				wr.Messages[col] = ws
			}
		}
		rows[i] = wr
	}
	return rows
}

// GetTableJSON handles `GET /table/{T}.json`.
func (s *Server) GetTableJSON(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimSuffix(chi.URLParam(r, "table"), ".json")
	res, filterSummary, limit, offset, err := s.runSelect(r, table)
	if err != nil {
		writeError(w, err)
		return
	}

	page := tablePage{
		Site: "rltbl",
		Page: pageInfo{Limit: limit, Offset: offset},
		Result: tableResult{
			Table:   table,
			Columns: dataColumns(res),
			Range:   [2]int{offset, offset + len(res.Rows)},
			Rows:    toWireRows(res),
			Select:  selectSummary{Filters: filterSummary, Limit: limit, Offset: offset},
		},
	}
	writeJSON(w, http.StatusOK, page)
}

// GetTable handles `GET /table/{T}`, a minimal server-rendered HTML
// table — the teacher's own appview/pages approach scaled down, with
// no client-side grid.
func (s *Server) GetTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	res, _, _, _, err := s.runSelect(r, table)
	if err != nil {
		writeError(w, err)
		return
	}
	cols := dataColumns(res)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<!doctype html><html><head><title>%s</title></head><body>", html.EscapeString(table))
	fmt.Fprintf(&sb, "<h1>%s</h1><table border=\"1\"><thead><tr><th>_id</th>", html.EscapeString(table))
	for _, c := range cols {
		fmt.Fprintf(&sb, "<th>%s</th>", html.EscapeString(c))
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range res.Rows {
		fmt.Fprintf(&sb, "<tr data-row=\"%d\"><td>%d</td>", row.ID, row.ID)
		for _, c := range cols {
			cell := fmt.Sprintf("%v", row.Cells[c])
			cls := ""
			if len(row.Messages[c]) > 0 {
				cls = " class=\"has-message\""
			}
			fmt.Fprintf(&sb, "<td%s>%s</td>", cls, html.EscapeString(cell))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")
	s.writeHistorySidebar(&sb, r)
	sb.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(sb.String()))
}

// writeHistorySidebar renders the acting user's most recent history
// entries with humanize.Time's relative timestamps, the lightweight
// stand-in for the teacher's own activity-feed fragments.
func (s *Server) writeHistorySidebar(sb *strings.Builder, r *http.Request) {
	user := s.sessionUser(r)
	var lines []string
	err := s.DB.WithTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
		history, err := s.Engine.Log.ForUser(ctx, tx, user)
		if err != nil {
			return err
		}
		for i := len(history) - 1; i >= 0 && len(lines) < 10; i-- {
			h := history[i]
			lines = append(lines, fmt.Sprintf("%s (%s)", html.EscapeString(h.Description), humanize.Time(h.Timestamp)))
		}
		return nil
	})
	if err != nil {
		return
	}
	sb.WriteString(`<ul class="history">`)
	for _, l := range lines {
		fmt.Fprintf(sb, "<li>%s</li>", l)
	}
	sb.WriteString(`</ul>`)
}
