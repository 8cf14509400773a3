package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/trackview"
	"github.com/go-chi/chi/v5"
)

func statusLabels() []string {
	out := make([]string, 0, 6)
	for _, st := range models.Statuses() {
		out = append(out, st.String())
	}
	return out
}

func (s *Server) handleTrackLookup(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if msg := models.CheckTrackingCode(code); msg != "" {
		writeError(w, r, apperr.Validation(msg, map[string]string{"code": msg}), nil)
		return
	}
	http.Redirect(w, r, "/track/"+url.PathEscape(code), http.StatusSeeOther)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	t, err := s.opts.Trackings.GetByCode(r.Context(), chi.URLParam(r, "trackingId"))
	if err != nil {
		var extra map[string]any
		if apperr.Is(err, apperr.KindNotFound) {
			extra = map[string]any{"home": "/"}
		}
		writeError(w, r, err, extra)
		return
	}
	writeJSON(w, http.StatusOK, trackview.Build(t, s.now()))
}

type adminRow struct {
	*models.Tracking
	StatusSeverity models.Severity `json:"status_severity"`
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	ts, err := s.opts.Trackings.List(r.Context())
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	rows := make([]adminRow, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, adminRow{Tracking: t, StatusSeverity: trackview.StatusColor(t.Status)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trackings": rows, "statuses": statusLabels()})
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var in models.TrackingCreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err, nil)
		return
	}
	t, err := s.opts.Trackings.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleAdminEditView(w http.ResponseWriter, r *http.Request) {
	t, err := s.opts.Trackings.GetByCode(r.Context(), chi.URLParam(r, "trackingCode"))
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracking": t, "statuses": statusLabels()})
}

// handleAdminUpdate ignores any tracking_code in the payload.
func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	var f models.TrackingFields
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, r, err, nil)
		return
	}
	t, err := s.opts.Trackings.Update(r.Context(), chi.URLParam(r, "trackingCode"), f)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type deleteRequest struct {
	Confirm string `json:"confirm"`
}

// handleAdminDelete is permanent, so the caller must echo the record's tracking code.
func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, r, apperr.Validation("invalid tracking id", map[string]string{"id": "Tracking id must be a positive number"}), nil)
		return
	}
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}

	t, err := s.opts.Trackings.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if strings.TrimSpace(req.Confirm) != t.TrackingCode {
		msg := "Type " + t.TrackingCode + " to confirm the permanent deletion"
		writeError(w, r, apperr.Validation(msg, map[string]string{"confirm": msg}), nil)
		return
	}

	code, err := s.opts.Trackings.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": code})
}
