package web

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"rltbl.sh/rltbl/errkind"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorResponse is the JSON body shape from spec.md §7. RequestID is a
// per-response correlation id a client can quote back when reporting
// an Internal error, independent of any request-id middleware.
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id"`
}

var statusByKind = map[errkind.Kind]int{
	errkind.NotFound:      http.StatusNotFound,
	errkind.TypeError:     http.StatusUnprocessableEntity,
	errkind.Conflict:      http.StatusConflict,
	errkind.ProtocolError: http.StatusBadRequest,
	errkind.Integrity:     http.StatusUnprocessableEntity,
	errkind.IO:            http.StatusServiceUnavailable,
	errkind.Internal:      http.StatusInternalServerError,
}

// writeError renders err as the JSON error body, choosing a 4xx/5xx
// status from its errkind.Kind the way spec.md §7 requires.
func writeError(w http.ResponseWriter, err error) {
	kind := errkind.As(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	retryable := false
	var ke *errkind.Error
	if e, ok := err.(*errkind.Error); ok {
		ke = e
	}
	if ke != nil {
		retryable = ke.Retryable()
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: string(kind), Retryable: retryable, RequestID: uuid.NewString()})
}
