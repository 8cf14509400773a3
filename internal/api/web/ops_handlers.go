package web

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.opts.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleJanitorStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Janitor == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Janitor.Stats())
}

func (s *Server) handleJanitorTrigger(w http.ResponseWriter, r *http.Request) {
	if s.opts.Janitor == nil {
		http.NotFound(w, r)
		return
	}
	s.opts.Janitor.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
}
