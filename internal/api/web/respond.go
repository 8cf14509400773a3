package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/TrackDesk/internal/apperr"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the error taxonomy. extra is merged into the top level.
func writeError(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e.Kind)
	if e.Kind == apperr.KindBackend {
		slog.Error("request failed", "path", r.URL.Path, "error", err.Error())
	}
	body := map[string]any{"error": errorBody{Code: string(e.Kind), Message: e.Message, Fields: e.Fields}}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("malformed request body", map[string]string{"body": err.Error()})
	}
	return nil
}
