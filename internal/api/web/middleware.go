package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type ctxKey int

const browserIDKey ctxKey = iota

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// browserContext issues the browser cookie on first contact and pins its id on the request.
func (s *Server) browserContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.opts.CookieName); err == nil {
			if _, perr := uuid.Parse(c.Value); perr == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     s.opts.CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), browserIDKey, id)))
	})
}

func (s *Server) gate(r *http.Request) *auth.Gate {
	id, _ := r.Context().Value(browserIDKey).(string)
	return s.opts.Gates.Get(id)
}

// state waits up to ReadyWait for the gate to settle and returns whatever it has then.
func (s *Server) state(r *http.Request) (*auth.Gate, auth.State) {
	g := s.gate(r)
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ReadyWait)
	defer cancel()
	st, _ := g.WaitReady(ctx)
	return g, st
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, st := s.state(r)
		v := s.guard.Check(st, true, r.URL.RequestURI())
		switch v.Decision {
		case auth.Render:
			next.ServeHTTP(w, r)
		case auth.Wait:
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusAccepted, map[string]any{"loading": true})
		case auth.RedirectHome:
			if v.Notice != "" {
				s.setNotice(w, v.Notice)
			}
			http.Redirect(w, r, v.Location, http.StatusSeeOther)
		default:
			http.Redirect(w, r, v.Location, http.StatusSeeOther)
		}
	})
}

func (s *Server) setNotice(w http.ResponseWriter, notice string) {
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookieName,
		Value:    notice,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeNotice returns the pending notice and clears it.
func (s *Server) takeNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Value
}
