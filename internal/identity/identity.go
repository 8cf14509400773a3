// Package identity holds the identity-provider contract consumed by the auth gate.
package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrProfileNotFound    = errors.New("profile not found")
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the credential bundle issued on sign-in.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

type Profile struct {
	UserID      string    `json:"id"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

type EventTag string

const (
	EventSignedIn       EventTag = "SIGNED_IN"
	EventSignedOut      EventTag = "SIGNED_OUT"
	EventTokenRefreshed EventTag = "TOKEN_REFRESHED"
	EventUserUpdated    EventTag = "USER_UPDATED"
)

// Event is an auth state change. Session is only set for in-process
// deliveries of SIGNED_IN and TOKEN_REFRESHED; remote copies never carry credentials.
type Event struct {
	Tag       EventTag
	SessionID string
	UserID    string
	Session   *Session
	At        time.Time
}

// Provider is the identity backend.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context, sessionID string) error
	// GetSession restores the session behind refreshToken, refreshing the
	// access token when it has expired. It returns nil, nil when the token is
	// unknown, revoked or expired.
	GetSession(ctx context.Context, refreshToken string) (*Session, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}

// ProfileSource fetches application profiles by user id.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}
