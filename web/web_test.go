package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat := catalog.New(db)
	if err := cat.Init(ctx); err != nil {
		t.Fatalf("init catalog: %v", err)
	}
	err = db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return cat.CreateUserTable(ctx, tx, "penguin", "", []catalog.ColumnSpec{
			{Name: "species", Label: "Species", Datatype: "text", Nulltype: "empty"},
		})
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	eng := action.New(db, cat, nil)
	return New(db, cat, eng, "tester", "test-secret-test-secret-32-bytes!")
}

func seedRows(t *testing.T, s *Server, names ...string) {
	t.Helper()
	ctx := context.Background()
	for _, n := range names {
		fields := map[string]cellval.Value{"species": cellval.TextValue(n)}
		if _, err := s.Engine.Add(ctx, "tester", "penguin", fields, nil, "Add "+n); err != nil {
			t.Fatalf("seed add: %v", err)
		}
	}
}

func TestGetTableJSONReturnsRows(t *testing.T) {
	s := newTestServer(t)
	seedRows(t, s, "Adelie", "Gentoo")

	req := httptest.NewRequest(http.MethodGet, "/table/penguin.json", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page tablePage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page.Result.Rows))
	}
}

func TestGetTableJSONFilterEq(t *testing.T) {
	s := newTestServer(t)
	seedRows(t, s, "Adelie", "Gentoo")

	req := httptest.NewRequest(http.MethodGet, "/table/penguin.json?species=eq.Gentoo", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var page tablePage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Result.Rows) != 1 || page.Result.Rows[0].Cells["species"] != "Gentoo" {
		t.Fatalf("expected one Gentoo row, got %+v", page.Result.Rows)
	}
}

func TestPostTableAddThenUndo(t *testing.T) {
	s := newTestServer(t)

	body := `{"action":"add","table":"penguin","user":"tester","changes":[{"fields":{"species":"Chinstrap"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/table/penguin", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	undoReq := httptest.NewRequest(http.MethodPost, "/table/penguin", strings.NewReader(`{"action":"undo","user":"tester"}`))
	undoW := httptest.NewRecorder()
	s.Router().ServeHTTP(undoW, undoReq)
	if undoW.Code != http.StatusOK {
		t.Fatalf("expected 200 on undo, got %d: %s", undoW.Code, undoW.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/table/penguin.json", nil)
	getW := httptest.NewRecorder()
	s.Router().ServeHTTP(getW, getReq)
	var page tablePage
	if err := json.Unmarshal(getW.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Result.Rows) != 0 {
		t.Fatalf("expected undo to remove the added row, got %+v", page.Result.Rows)
	}
}

func TestPostSignInSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/sign-in", strings.NewReader(`{"user":"alice"}`))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatal("expected a session cookie to be set")
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
