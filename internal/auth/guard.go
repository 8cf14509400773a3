package auth

import (
	"net/url"
	"strings"
)

type Decision int

const (
	Render Decision = iota
	Wait
	RedirectLogin
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case RedirectLogin:
		return "redirect-login"
	case RedirectHome:
		return "redirect-home"
	default:
		return "unknown"
	}
}

const (
	LoginPath = "/login"
	HomePath  = "/"
	AdminPath = "/admin"

	NoticeNotPermitted = "not-permitted"
)

type Verdict struct {
	Decision Decision
	Location string
	Notice   string
}

type Guard struct {
	PrivilegedID string
}

// Check decides what a protected route may do for the given state. It never
// redirects while the state is loading.
func (g Guard) Check(s State, requireAdmin bool, requested string) Verdict {
	if s.Loading {
		return Verdict{Decision: Wait}
	}
	if s.User == nil {
		return Verdict{Decision: RedirectLogin, Location: LoginLocation(requested)}
	}
	if requireAdmin && !(s.IsAdmin || IsAdminFact(nil, s.User.ID, g.PrivilegedID)) {
		return Verdict{Decision: RedirectHome, Location: HomePath, Notice: NoticeNotPermitted}
	}
	return Verdict{Decision: Render}
}

func LoginLocation(requested string) string {
	if !IsLocalPath(requested) {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(requested)
}

// IsLocalPath accepts "/x" but not "//host" or "/\host".
func IsLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}

// PostLoginLocation is where a freshly signed-in user goes.
func PostLoginLocation(s State, redirect string) string {
	if IsLocalPath(redirect) && !strings.HasPrefix(redirect, LoginPath) {
		return redirect
	}
	if s.IsAdmin {
		return AdminPath
	}
	return HomePath
}
