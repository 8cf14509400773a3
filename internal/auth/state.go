// Package auth keeps the per-browser authentication context: the current
// session, the resolved profile and the derived admin flag.
//
// Every transition goes through Reducer.Reduce, which is pure. The Gate owns
// the side effects (provider calls, token mirror, profile fetches) and feeds
// their outcomes back in as events.
package auth

import (
	"github.com/BearBump/TrackDesk/internal/identity"
)

type State struct {
	Session *identity.Session
	User    *identity.User
	Profile *identity.Profile
	IsAdmin bool
	Loading bool

	initPending         bool
	restoreDone         bool
	sessionSuperseded   bool
	profileSettled      bool
	signingIn           bool
}

// InitialState is loading until the first restore settles.
func InitialState() State {
	return State{Loading: true, initPending: true}
}

func (s State) SignedIn() bool {
	return s.User != nil
}

func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

func (s State) SessionID() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.ID
}

// Event is a state transition input.
type Event interface {
	isEvent()
}

type (
	InitStarted     struct{}
	SessionRestored struct{ Session *identity.Session }
	RestoreFailed   struct{ Err error }
	// SessionChanged is a provider bus delivery.
	SessionChanged struct {
		Tag     identity.EventTag
		Session *identity.Session
	}
	ProfileResolved struct {
		UserID  string
		Profile *identity.Profile
	}
	ProfileFailed struct {
		UserID string
		Err    error
	}
	SignInStarted   struct{}
	SignInSucceeded struct{ Session *identity.Session }
	SignInFinished  struct{}
	SignedOut       struct{}
)

func (InitStarted) isEvent()     {}
func (SessionRestored) isEvent() {}
func (RestoreFailed) isEvent()   {}
func (SessionChanged) isEvent()  {}
func (ProfileResolved) isEvent() {}
func (ProfileFailed) isEvent()   {}
func (SignInStarted) isEvent()   {}
func (SignInSucceeded) isEvent() {}
func (SignInFinished) isEvent()  {}
func (SignedOut) isEvent()       {}

// IsAdminFact is the authorization rule: an admin role or the privileged id.
func IsAdminFact(p *identity.Profile, userID, privilegedID string) bool {
	if userID == "" {
		return false
	}
	return p.IsAdmin() || (privilegedID != "" && userID == privilegedID)
}

type Reducer struct {
	PrivilegedID string
}

func (r Reducer) Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case InitStarted:
		s.initPending = true
		s.restoreDone = false
		s.sessionSuperseded = false

	case SessionRestored:
		s.restoreDone = true
		// a listener delivery, sign-in or sign-out seen during the restore is newer
		if !s.sessionSuperseded {
			s = r.setSession(s, e.Session)
		}

	case RestoreFailed:
		s.restoreDone = true

	case SessionChanged:
		switch {
		case e.Tag == identity.EventSignedOut:
			s = r.setSession(s, nil)
		case e.Session == nil:
			return s
		default:
			s = r.setSession(s, e.Session)
		}
		s.sessionSuperseded = true

	case ProfileResolved:
		if s.UserID() == "" || s.UserID() != e.UserID {
			return s
		}
		s.Profile = e.Profile
		s.IsAdmin = IsAdminFact(e.Profile, e.UserID, r.PrivilegedID)
		s.profileSettled = true

	case ProfileFailed:
		if s.UserID() == "" || s.UserID() != e.UserID {
			return s
		}
		s.IsAdmin = s.IsAdmin || IsAdminFact(nil, e.UserID, r.PrivilegedID)
		s.profileSettled = true

	case SignInStarted:
		s.signingIn = true

	case SignInSucceeded:
		s = r.setSession(s, e.Session)
		s.sessionSuperseded = true

	case SignInFinished:
		s.signingIn = false

	case SignedOut:
		s = r.setSession(s, nil)
		s.sessionSuperseded = true
	}

	if s.initPending && s.restoreDone && (s.User == nil || s.profileSettled) {
		s.initPending = false
	}
	s.Loading = s.initPending || s.signingIn
	return s
}

// setSession replaces the session. A new user drops the previous profile and
// gets the privileged bypass right away; the same user keeps its profile.
func (r Reducer) setSession(s State, sess *identity.Session) State {
	prev := s.UserID()
	if sess == nil {
		s.Session = nil
		s.User = nil
		s.Profile = nil
		s.IsAdmin = false
		s.profileSettled = false
		return s
	}

	cp := *sess
	u := cp.User
	s.Session = &cp
	s.User = &u
	if u.ID != prev {
		s.Profile = nil
		s.IsAdmin = IsAdminFact(nil, u.ID, r.PrivilegedID)
		s.profileSettled = false
	}
	return s
}
