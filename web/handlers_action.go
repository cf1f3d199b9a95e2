package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rltbl.sh/rltbl/action"
	"rltbl.sh/rltbl/cellval"
	"rltbl.sh/rltbl/errkind"
)

// changeRequest is one row-level mutation within a POST /table/{T}
// body's changes[] array.
type changeRequest struct {
	Row    int64                      `json:"row,omitempty"`
	After  *int64                     `json:"after,omitempty"`
	Fields map[string]json.RawMessage `json:"fields,omitempty"`
}

// actionRequest is the POST /table/{T} body from spec.md §6.
type actionRequest struct {
	Action      string          `json:"action"`
	Table       string          `json:"table"`
	User        string          `json:"user,omitempty"`
	Description string          `json:"description,omitempty"`
	Changes     []changeRequest `json:"changes,omitempty"`
}

type actionResultWire struct {
	HistoryID int64 `json:"history_id"`
	RowID     int64 `json:"row_id"`
}

// PostTable handles `POST /table/{T}`: Add, Update, Delete and Move run
// once per entry in changes[], each through the action engine's own
// transaction; Undo and Redo ignore changes[] and run exactly once.
func (s *Server) PostTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errkind.Wrap(errkind.ProtocolError, "decode request body", err))
		return
	}
	if req.Table == "" {
		req.Table = table
	}
	user := req.User
	if user == "" {
		user = s.sessionUser(r)
	}

	results, err := s.dispatchAction(r, req, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) dispatchAction(r *http.Request, req actionRequest, user string) ([]actionResultWire, error) {
	ctx := r.Context()

	switch req.Action {
	case "undo":
		res, err := s.Engine.Undo(ctx, user)
		if err != nil {
			return nil, err
		}
		return []actionResultWire{{HistoryID: res.HistoryID, RowID: res.RowID}}, nil
	case "redo":
		res, err := s.Engine.Redo(ctx, user)
		if err != nil {
			return nil, err
		}
		return []actionResultWire{{HistoryID: res.HistoryID, RowID: res.RowID}}, nil
	}

	if len(req.Changes) == 0 {
		return nil, errkind.New(errkind.ProtocolError, "changes[] must not be empty")
	}

	var out []actionResultWire
	for _, c := range req.Changes {
		fields, err := decodeFields(c.Fields)
		if err != nil {
			return nil, err
		}

		var res *action.Result
		switch req.Action {
		case "add":
			res, err = s.Engine.Add(ctx, user, req.Table, fields, c.After, req.Description)
		case "update":
			res, err = s.Engine.Update(ctx, user, req.Table, c.Row, fields, req.Description)
		case "delete":
			res, err = s.Engine.Delete(ctx, user, req.Table, c.Row, req.Description)
		case "move":
			if c.After == nil {
				return nil, errkind.New(errkind.ProtocolError, "move requires \"after\"")
			}
			res, err = s.Engine.Move(ctx, user, req.Table, c.Row, *c.After, req.Description)
		default:
			return nil, errkind.New(errkind.ProtocolError, "unknown action: "+req.Action)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, actionResultWire{HistoryID: res.HistoryID, RowID: res.RowID})
	}
	return out, nil
}

func decodeFields(raw map[string]json.RawMessage) (map[string]cellval.Value, error) {
	out := make(map[string]cellval.Value, len(raw))
	for col, v := range raw {
		val, err := cellval.FromJSON(v)
		if err != nil {
			return nil, err
		}
		out[col] = val
	}
	return out, nil
}
