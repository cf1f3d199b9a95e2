// Package web implements the HTTP surface from spec.md §6: a
// single-host JSON/HTML API fronting one database, built the way
// appview/state builds its router — one chi.Router, handlers grouped
// by concern, gorilla/sessions for the signed-in user.
package web

import (
	"net/http"

	"github.com/gorilla/sessions"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/catalog"
	"rltbl.sh/rltbl/message"
	"rltbl.sh/rltbl/store"
)

// SessionCookieName is the cookie gorilla/sessions stores the signed-in
// user under, mirroring the teacher's single named session cookie.
const SessionCookieName = "rltbl_session"

// SessionUserKey is the session.Values key holding the signed-in user.
const SessionUserKey = "user"

// Server holds everything an HTTP handler needs: the storage façade,
// the action engine, and the cookie store backing `POST /sign-in`.
type Server struct {
	DB          *store.DB
	Catalog     *catalog.Catalog
	Engine      *action.Engine
	Messages    *message.Store
	Sessions    *sessions.CookieStore
	DefaultUser string
}

// New builds a Server. cookieSecret is passed to NewCookieStore as the
// only key, so it signs the session cookie; no encryption key is given,
// so the cookie is not encrypted.
func New(db *store.DB, cat *catalog.Catalog, eng *action.Engine, defaultUser, cookieSecret string) *Server {
	return &Server{
		DB:          db,
		Catalog:     cat,
		Engine:      eng,
		Messages:    eng.Messages,
		Sessions:    sessions.NewCookieStore([]byte(cookieSecret)),
		DefaultUser: defaultUser,
	}
}

// sessionUser resolves the acting user for a request: the signed-in
// session value if present, else the server's default (RLTBL_USER).
func (s *Server) sessionUser(r *http.Request) string {
	session, err := s.Sessions.Get(r, SessionCookieName)
	if err != nil {
		return s.DefaultUser
	}
	if u, ok := session.Values[SessionUserKey].(string); ok && u != "" {
		return u
	}
	return s.DefaultUser
}
