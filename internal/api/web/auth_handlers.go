package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
)

type sessionView struct {
	SignedIn    bool   `json:"signed_in"`
	Email       string `json:"email,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	DisplayName string `json:"display_name,omitempty"`
}

func viewOf(st auth.State) sessionView {
	v := sessionView{SignedIn: st.SignedIn(), IsAdmin: st.IsAdmin}
	if st.User != nil {
		v.Email = st.User.Email
	}
	if st.Profile != nil {
		v.DisplayName = st.Profile.DisplayName
	}
	return v
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	_, st := s.state(r)
	body := map[string]any{
		"service": "TrackDesk",
		"session": viewOf(st),
		"track":   "/track",
	}
	if n := s.takeNotice(w, r); n != "" {
		body["notice"] = n
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLoginView(w http.ResponseWriter, r *http.Request) {
	_, st := s.state(r)
	redirect := r.URL.Query().Get("redirect")
	if !st.Loading && st.SignedIn() {
		http.Redirect(w, r, auth.PostLoginLocation(st, redirect), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"login": true, "redirect": redirect})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required"
	}
	if req.Password == "" {
		fields["password"] = "Password is required"
	}
	if len(fields) > 0 {
		writeError(w, r, apperr.Validation("invalid sign-in", fields), nil)
		return
	}

	if !s.allowLogin(r, email) {
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": errorBody{
			Code:    "RATE_LIMITED",
			Message: "Too many sign-in attempts, try again in a minute",
		}})
		return
	}

	g, _ := s.state(r)
	if err := g.SignIn(r.Context(), email, req.Password); err != nil {
		writeError(w, r, err, nil)
		return
	}
	st := g.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  viewOf(st),
		"location": auth.PostLoginLocation(st, req.Redirect),
	})
}

// allowLogin fails open when the limiter backend is down.
func (s *Server) allowLogin(r *http.Request, email string) bool {
	if s.opts.Limiter == nil || s.opts.LoginLimitPerMinute <= 0 {
		return true
	}
	key := fmt.Sprintf("rl:login:%s:%d", email, s.now().Unix()/60)
	ok, _, err := s.opts.Limiter.Allow(r.Context(), key, int64(s.opts.LoginLimitPerMinute), time.Minute)
	if err != nil {
		slog.Warn("login rate limiter unavailable", "err", err)
		return true
	}
	return ok
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate(r).SignOut(r.Context())
	http.Redirect(w, r, auth.HomePath, http.StatusSeeOther)
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.opts.Accounts == nil {
		http.NotFound(w, r)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	u, err := s.opts.Accounts.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			err = apperr.Conflict("Email already registered", "email")
		}
		writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "email": u.Email, "login": auth.LoginPath})
}
