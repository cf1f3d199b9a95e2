package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"rltbl.sh/rltbl/errkind"
	"rltbl.sh/rltbl/sqlgen"
)

// cursorRequest records a user's current (table,row,column) focus, for
// collaborative display of who's looking at what.
type cursorRequest struct {
	User   string `json:"user"`
	Table  string `json:"table"`
	Row    *int64 `json:"row,omitempty"`
	Column string `json:"column,omitempty"`
}

// PostCursor handles `POST /cursor`, upserting the caller's cursor
// position keyed by user.
func (s *Server) PostCursor(w http.ResponseWriter, r *http.Request) {
	var req cursorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errkind.Wrap(errkind.ProtocolError, "decode request body", err))
		return
	}
	if req.User == "" {
		req.User = s.sessionUser(r)
	}
	if req.Table == "" {
		writeError(w, errkind.New(errkind.ProtocolError, "cursor requires a table"))
		return
	}

	err := s.DB.WithTx(r.Context(), func(ctx context.Context, tx *sql.Tx) error {
		return upsertCursor(ctx, tx, s.DB.Dialect, req)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func upsertCursor(ctx context.Context, tx *sql.Tx, d sqlgen.Dialect, req cursorRequest) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`delete from %s where %s = %s`,
		d.QuoteIdent("cursor"), d.QuoteIdent("user"), d.BindPlaceholder(1)), req.User); err != nil {
		return errkind.Wrap(errkind.Internal, "clear cursor", err)
	}
	stmt := fmt.Sprintf(`insert into %s (%s,%s,%s,%s,%s) values (%s,%s,%s,%s,%s)`,
		d.QuoteIdent("cursor"),
		d.QuoteIdent("user"), d.QuoteIdent("table"), d.QuoteIdent("row"), d.QuoteIdent("column"), d.QuoteIdent("updated_at"),
		d.BindPlaceholder(1), d.BindPlaceholder(2), d.BindPlaceholder(3), d.BindPlaceholder(4), d.BindPlaceholder(5))
	if _, err := tx.ExecContext(ctx, stmt, req.User, req.Table, req.Row, nullableString(req.Column), nowRFC3339()); err != nil {
		return errkind.Wrap(errkind.Internal, "upsert cursor", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
