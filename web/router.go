package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Router builds the full HTTP surface from spec.md §6, the way
// appview/state/router.go assembles StandardRouter: one chi.Router
// with per-concern routes grouped under Route blocks.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Healthz)

	// {table}.json is matched as a single path segment with a literal
	// suffix, the same trick chi's own docs use for "{month}-{day}".
	r.Get("/table/{table}.json", s.GetTableJSON)
	r.Get("/table/{table}", s.GetTable)
	r.Post("/table/{table}", s.PostTable)

	r.Post("/cursor", s.PostCursor)
	r.Post("/sign-in", s.PostSignIn)

	r.Get("/cell-options/{table}/{row}/{column}", s.GetCellOptions)
	r.Get("/row-menu", s.GetRowMenu)
	r.Get("/cell-menu", s.GetCellMenu)
	r.Get("/column-menu", s.GetColumnMenu)

	return r
}
