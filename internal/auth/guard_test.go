package auth

import (
	"testing"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/stretchr/testify/require"
)

func signedIn(userID string, profile *identity.Profile) State {
	r := Reducer{PrivilegedID: privilegedID}
	s := reduceAll(r, InitStarted{}, SessionRestored{Session: session("s1", userID)})
	if profile != nil {
		s = r.Reduce(s, ProfileResolved{UserID: userID, Profile: profile})
	} else {
		s = r.Reduce(s, ProfileFailed{UserID: userID})
	}
	return s
}

func TestGuard_LoadingWaits(t *testing.T) {
	g := Guard{PrivilegedID: privilegedID}
	v := g.Check(InitialState(), true, "/admin")
	require.Equal(t, Wait, v.Decision)
	require.Empty(t, v.Location)
}

func TestGuard_AnonymousRedirectsToLoginWithLocation(t *testing.T) {
	g := Guard{PrivilegedID: privilegedID}
	s := reduceAll(Reducer{}, InitStarted{}, SessionRestored{})

	v := g.Check(s, true, "/admin/tracking/edit/TRK-123456")
	require.Equal(t, RedirectLogin, v.Decision)
	require.Equal(t, "/login?redirect=%2Fadmin%2Ftracking%2Fedit%2FTRK-123456", v.Location)

	v = g.Check(s, false, "//evil.example")
	require.Equal(t, "/login", v.Location)
}

func TestGuard_NonAdminGoesHomeWithNotice(t *testing.T) {
	g := Guard{PrivilegedID: privilegedID}
	v := g.Check(signedIn("u1", &identity.Profile{UserID: "u1", Role: "user"}), true, "/admin")
	require.Equal(t, RedirectHome, v.Decision)
	require.Equal(t, "/", v.Location)
	require.Equal(t, NoticeNotPermitted, v.Notice)

	v = g.Check(signedIn("u1", &identity.Profile{UserID: "u1", Role: "user"}), false, "/track/X")
	require.Equal(t, Render, v.Decision)
}

func TestGuard_AdminRenders(t *testing.T) {
	g := Guard{PrivilegedID: privilegedID}
	require.Equal(t, Render, g.Check(signedIn("u1", &identity.Profile{UserID: "u1", Role: identity.RoleAdmin}), true, "/admin").Decision)
	require.Equal(t, Render, g.Check(signedIn(privilegedID, nil), true, "/admin").Decision)
}

func TestGuard_NoLoopAfterAdminSignIn(t *testing.T) {
	g := Guard{PrivilegedID: privilegedID}
	anon := reduceAll(Reducer{}, InitStarted{}, SessionRestored{})

	v := g.Check(anon, true, "/admin")
	require.Equal(t, "/login?redirect=%2Fadmin", v.Location)

	admin := signedIn("u1", &identity.Profile{UserID: "u1", Role: identity.RoleAdmin})
	dest := PostLoginLocation(admin, "/admin")
	require.Equal(t, "/admin", dest)
	require.Equal(t, Render, g.Check(admin, true, dest).Decision)
}

func TestPostLoginLocation(t *testing.T) {
	admin := signedIn("u1", &identity.Profile{UserID: "u1", Role: identity.RoleAdmin})
	user := signedIn("u2", &identity.Profile{UserID: "u2", Role: "user"})

	require.Equal(t, "/admin", PostLoginLocation(admin, ""))
	require.Equal(t, "/", PostLoginLocation(user, ""))
	require.Equal(t, "/", PostLoginLocation(user, "https://evil.example/"))
	require.Equal(t, "/", PostLoginLocation(user, "/login?redirect=/admin"))
	require.Equal(t, "/track/ABC123", PostLoginLocation(user, "/track/ABC123"))
}

func TestIsLocalPath(t *testing.T) {
	require.True(t, IsLocalPath("/admin"))
	require.False(t, IsLocalPath(""))
	require.False(t, IsLocalPath("admin"))
	require.False(t, IsLocalPath("//evil.example"))
	require.False(t, IsLocalPath("/\\evil.example"))
	require.False(t, IsLocalPath("/a\r\nSet-Cookie: x"))
}
