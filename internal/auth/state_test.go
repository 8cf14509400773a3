package auth

import (
	"errors"
	"testing"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/stretchr/testify/require"
)

const privilegedID = "priv-1"

func session(id, userID string) *identity.Session {
	return &identity.Session{ID: id, RefreshToken: id + ".r", User: identity.User{ID: userID, Email: userID + "@example.com"}}
}

func reduceAll(r Reducer, evs ...Event) State {
	s := InitialState()
	for _, ev := range evs {
		s = r.Reduce(s, ev)
	}
	return s
}

func TestReducer_InitialStateIsLoading(t *testing.T) {
	s := InitialState()
	require.True(t, s.Loading)
	require.False(t, s.SignedIn())
}

func TestReducer_RestoreWithoutSessionSettles(t *testing.T) {
	s := reduceAll(Reducer{}, InitStarted{}, SessionRestored{})
	require.False(t, s.Loading)
	require.Nil(t, s.User)
}

func TestReducer_RestoreFailedSettles(t *testing.T) {
	s := reduceAll(Reducer{}, InitStarted{}, RestoreFailed{Err: errors.New("down")})
	require.False(t, s.Loading)
	require.Nil(t, s.User)
}

func TestReducer_LoadingUntilProfileSettles(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", "u1")})
	require.True(t, s.Loading)
	require.Equal(t, "u1", s.UserID())

	s = r.Reduce(s, ProfileResolved{UserID: "u1", Profile: &identity.Profile{UserID: "u1", Role: "user"}})
	require.False(t, s.Loading)
	require.False(t, s.IsAdmin)
}

func TestReducer_PrivilegedIsAdminBeforeProfile(t *testing.T) {
	r := Reducer{PrivilegedID: privilegedID}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", privilegedID)})
	require.Nil(t, s.Profile)
	require.True(t, s.IsAdmin)

	s = r.Reduce(s, ProfileResolved{UserID: privilegedID, Profile: &identity.Profile{Role: "user"}})
	require.True(t, s.IsAdmin)
}

func TestReducer_PrivilegedStaysAdminWhenProfileFails(t *testing.T) {
	r := Reducer{PrivilegedID: privilegedID}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", privilegedID)},
		ProfileFailed{UserID: privilegedID, Err: errors.New("boom")})
	require.True(t, s.IsAdmin)
	require.True(t, s.SignedIn())
	require.False(t, s.Loading)
}

func TestReducer_NonPrivilegedAdminFollowsRole(t *testing.T) {
	r := Reducer{PrivilegedID: privilegedID}
	for _, role := range []string{"user", "admin", "", "editor"} {
		s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", "u1")})
		require.False(t, s.IsAdmin, "no profile yet")
		s = r.Reduce(s, ProfileResolved{UserID: "u1", Profile: &identity.Profile{UserID: "u1", Role: role}})
		require.Equal(t, role == identity.RoleAdmin, s.IsAdmin, role)
	}
}

func TestReducer_ProfileFailureKeepsPreviousProfile(t *testing.T) {
	r := Reducer{}
	admin := &identity.Profile{UserID: "u1", Role: identity.RoleAdmin}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", "u1")},
		ProfileResolved{UserID: "u1", Profile: admin},
		ProfileFailed{UserID: "u1", Err: errors.New("timeout")})
	require.Equal(t, admin, s.Profile)
	require.True(t, s.IsAdmin)
	require.True(t, s.SignedIn())
}

func TestReducer_StaleProfileIsDropped(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", "u1")}, SignedOut{})
	s = r.Reduce(s, ProfileResolved{UserID: "u1", Profile: &identity.Profile{UserID: "u1", Role: identity.RoleAdmin}})
	require.Nil(t, s.Profile)
	require.False(t, s.IsAdmin)

	s = r.Reduce(s, SignInSucceeded{Session: session("s2", "u2")})
	s = r.Reduce(s, ProfileResolved{UserID: "u1", Profile: &identity.Profile{UserID: "u1", Role: identity.RoleAdmin}})
	require.Nil(t, s.Profile)
	require.False(t, s.IsAdmin)
}

func TestReducer_ListenerEventWinsOverRestore(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{},
		SessionChanged{Tag: identity.EventSignedOut},
		SessionRestored{Session: session("s1", "u1")})
	require.Nil(t, s.User)
	require.False(t, s.Loading)

	s = reduceAll(r, InitStarted{},
		SessionChanged{Tag: identity.EventTokenRefreshed, Session: session("s1", "u1")},
		SessionRestored{Session: session("s0", "u0")})
	require.Equal(t, "s1", s.SessionID())
}

func TestReducer_SignInWinsOverLateRestore(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{},
		SignInStarted{},
		SignInSucceeded{Session: session("s2", "u2")},
		SignInFinished{},
		SessionRestored{Session: session("s1", "u1")})
	require.Equal(t, "s2", s.SessionID())
	require.Equal(t, "u2", s.UserID())

	s = reduceAll(r, InitStarted{}, SignedOut{}, SessionRestored{Session: session("s1", "u1")})
	require.Nil(t, s.User)
	require.False(t, s.Loading)
}

func TestReducer_SessionlessChangeIgnored(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{}, SessionChanged{Tag: identity.EventTokenRefreshed})
	s = r.Reduce(s, SessionRestored{Session: session("s1", "u1")})
	require.Equal(t, "u1", s.UserID())
}

func TestReducer_SameUserKeepsProfile(t *testing.T) {
	r := Reducer{}
	p := &identity.Profile{UserID: "u1", Role: identity.RoleAdmin}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", "u1")}, ProfileResolved{UserID: "u1", Profile: p})
	s = r.Reduce(s, SessionChanged{Tag: identity.EventTokenRefreshed, Session: session("s1", "u1")})
	require.Equal(t, p, s.Profile)
	require.True(t, s.IsAdmin)
	require.False(t, s.Loading)
}

func TestReducer_SignInIsLoadingUntilFinished(t *testing.T) {
	r := Reducer{}
	s := reduceAll(r, InitStarted{}, SessionRestored{})
	s = r.Reduce(s, SignInStarted{})
	require.True(t, s.Loading)
	s = r.Reduce(s, SignInSucceeded{Session: session("s1", "u1")})
	require.True(t, s.Loading)
	s = r.Reduce(s, SignInFinished{})
	require.False(t, s.Loading)
}

func TestReducer_SessionIsCopied(t *testing.T) {
	sess := session("s1", "u1")
	s := reduceAll(Reducer{}, InitStarted{}, SessionRestored{Session: sess})
	sess.User.ID = "mutated"
	require.Equal(t, "u1", s.UserID())
}

func TestIsAdminFact(t *testing.T) {
	require.False(t, IsAdminFact(nil, "", ""))
	require.False(t, IsAdminFact(nil, "u1", ""))
	require.True(t, IsAdminFact(nil, "u1", "u1"))
	require.True(t, IsAdminFact(&identity.Profile{Role: identity.RoleAdmin}, "u2", "u1"))
	require.False(t, IsAdminFact(&identity.Profile{Role: identity.RoleAdmin}, "", "u1"))
}
