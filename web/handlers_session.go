package web

import (
	"encoding/json"
	"net/http"

	"rltbl.sh/rltbl/errkind"
)

type signInRequest struct {
	User string `json:"user"`
}

// PostSignIn handles `POST /sign-in`, setting the session's acting
// user the way the teacher's oauth handler saves SessStore sessions
// (sessions.CookieStore.Get then .Save).
func (s *Server) PostSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errkind.Wrap(errkind.ProtocolError, "decode request body", err))
		return
	}
	if req.User == "" {
		writeError(w, errkind.New(errkind.ProtocolError, "sign-in requires a user"))
		return
	}

	session, err := s.Sessions.Get(r, SessionCookieName)
	if err != nil {
		writeError(w, errkind.Wrap(errkind.Internal, "open session", err))
		return
	}
	session.Values[SessionUserKey] = req.User
	if err := session.Save(r, w); err != nil {
		writeError(w, errkind.Wrap(errkind.Internal, "save session", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user": req.User})
}
