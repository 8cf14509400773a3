// Package provider is the Postgres-backed identity provider: password
// sign-in with bcrypt, HS256 access tokens and hashed refresh tokens.
package provider

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/BearBump/TrackDesk/internal/storage/pgidentity"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLen = 8

type Store interface {
	CreateUser(ctx context.Context, id, email, passwordHash string) (*identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*identity.User, string, error)
	GetUserByID(ctx context.Context, id string) (*identity.User, error)
	CreateSession(ctx context.Context, as pgidentity.AuthSession) error
	GetSession(ctx context.Context, id string) (*pgidentity.AuthSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	RevokeSession(ctx context.Context, id string) (string, error)
}

type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

type Provider struct {
	store  Store
	bus    identity.Bus
	tokens *tokenManager
	cfg    Config
	now    func() time.Time

	// compared against when the email is unknown, so both paths cost a bcrypt run
	dummyHash []byte
}

var _ identity.Provider = (*Provider)(nil)

func New(store Store, bus identity.Bus, cfg Config) (*Provider, error) {
	if len(cfg.JWTSecret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("trackdesk-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "bcrypt")
	}
	return &Provider{
		store:     store,
		bus:       bus,
		tokens:    &tokenManager{secret: []byte(cfg.JWTSecret), ttl: cfg.AccessTTL},
		cfg:       cfg,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	u, hash, err := p.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, pgidentity.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return nil, identity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "compare password")
	}

	sess, err := p.openSession(ctx, u)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, identity.Event{Tag: identity.EventSignedIn, SessionID: sess.ID, UserID: u.ID, Session: sess})
	return sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.User, error) {
	email = NormalizeEmail(email)
	fields := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		fields["email"] = "A valid email is required"
	}
	if len(password) < minPasswordLen {
		fields["password"] = "Password must be at least 8 characters"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid sign-up", fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	return p.store.CreateUser(ctx, uuid.NewString(), email, string(hash))
}

// SignOut revokes the session. Unknown or already revoked sessions are not an error.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil
	}
	userID, err := p.store.RevokeSession(ctx, sessionID)
	if errors.Is(err, pgidentity.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	p.publish(ctx, identity.Event{Tag: identity.EventSignedOut, SessionID: sessionID, UserID: userID})
	return nil
}

// GetSession validates the refresh token and issues a fresh access token.
func (p *Provider) GetSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	sid := splitRefreshToken(refreshToken)
	if sid == "" {
		return nil, nil
	}

	as, err := p.store.GetSession(ctx, sid)
	if errors.Is(err, pgidentity.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := p.now()
	if subtle.ConstantTimeCompare([]byte(as.RefreshHash), []byte(hashRefreshToken(refreshToken))) != 1 {
		return nil, nil
	}
	if as.RevokedAt != nil || !now.Before(as.RefreshExpiresAt) {
		return nil, nil
	}

	u, err := p.store.GetUserByID(ctx, as.UserID)
	if errors.Is(err, pgidentity.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	access, exp, err := p.tokens.issue(u.ID, u.Email, sid, now)
	if err != nil {
		return nil, err
	}
	if err := p.store.TouchSession(ctx, sid, now); err != nil {
		slog.Warn("identity: touch session failed", "session_id", sid, "err", err)
	}

	sess := &identity.Session{ID: sid, AccessToken: access, RefreshToken: refreshToken, ExpiresAt: exp, User: *u}
	p.publish(ctx, identity.Event{Tag: identity.EventTokenRefreshed, SessionID: sid, UserID: u.ID, Session: sess})
	return sess, nil
}

// VerifyAccessToken checks the signature and expiry of an access token.
func (p *Provider) VerifyAccessToken(raw string) (*AccessClaims, error) {
	return p.tokens.parse(raw)
}

func (p *Provider) Subscribe(fn func(identity.Event)) func() {
	return p.bus.Subscribe(fn)
}

func (p *Provider) openSession(ctx context.Context, u *identity.User) (*identity.Session, error) {
	now := p.now()
	sid := uuid.NewString()
	refresh, hash, err := newRefreshToken(sid)
	if err != nil {
		return nil, err
	}
	if err := p.store.CreateSession(ctx, pgidentity.AuthSession{
		ID:               sid,
		UserID:           u.ID,
		RefreshHash:      hash,
		CreatedAt:        now,
		RefreshExpiresAt: now.Add(p.cfg.RefreshTTL),
	}); err != nil {
		return nil, err
	}

	access, exp, err := p.tokens.issue(u.ID, u.Email, sid, now)
	if err != nil {
		return nil, err
	}
	return &identity.Session{ID: sid, AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: *u}, nil
}

func (p *Provider) publish(ctx context.Context, ev identity.Event) {
	ev.At = p.now().UTC()
	if err := p.bus.Publish(ctx, ev); err != nil {
		slog.Warn("identity: publish event failed", "tag", ev.Tag, "session_id", ev.SessionID, "err", err)
	}
}
