package web

import "net/http"

// Healthz handles `GET /healthz`: a liveness probe confirming the
// database connection is reachable, beyond the base spec's CLI/HTTP
// surface.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
