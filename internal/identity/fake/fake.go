// Package fake provides in-memory identity backends for tests.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
)

type account struct {
	user     identity.User
	password string
}

// Provider is an in-memory identity.Provider. Events are delivered
// synchronously, like the real provider's in-process bus.
type Provider struct {
	bus *identity.LocalBus

	mu       sync.Mutex
	accounts map[string]account
	sessions map[string]*identity.Session
	seq      int
	calls    map[string]int

	// Hooks; set before use.
	SignInErr     error
	SignOutErr    error
	GetSessionErr error
	// HoldGetSession, when set, blocks GetSession until it is closed.
	HoldGetSession chan struct{}
	// BeforeGetSessionReturns runs after HoldGetSession is released.
	BeforeGetSessionReturns func()
}

func NewProvider() *Provider {
	return &Provider{
		bus:      identity.NewLocalBus(),
		accounts: make(map[string]account),
		sessions: make(map[string]*identity.Session),
		calls:    make(map[string]int),
	}
}

func (p *Provider) AddUser(id, email, password string) identity.User {
	u := identity.User{ID: id, Email: strings.ToLower(email), CreatedAt: time.Now().UTC()}
	p.mu.Lock()
	p.accounts[u.Email] = account{user: u, password: password}
	p.mu.Unlock()
	return u
}

// Issue creates a live session for an existing user without publishing.
func (p *Provider) Issue(email string) *identity.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[strings.ToLower(email)]
	if !ok {
		return nil
	}
	return p.issueLocked(a.user)
}

func (p *Provider) issueLocked(u identity.User) *identity.Session {
	p.seq++
	s := &identity.Session{
		ID:           fmt.Sprintf("sess-%d", p.seq),
		AccessToken:  fmt.Sprintf("access-%d", p.seq),
		RefreshToken: fmt.Sprintf("sess-%d.refresh", p.seq),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         u,
	}
	p.sessions[s.RefreshToken] = s
	cp := *s
	return &cp
}

func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) count(method string) {
	p.mu.Lock()
	p.calls[method]++
	p.mu.Unlock()
}

// Emit publishes ev as if it came from the backend.
func (p *Provider) Emit(ev identity.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	p.bus.Dispatch(ev)
}

func (p *Provider) Subscribers() int {
	return p.bus.Len()
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	p.count("SignInWithPassword")
	if p.SignInErr != nil {
		return nil, p.SignInErr
	}
	p.mu.Lock()
	a, ok := p.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || a.password != password {
		p.mu.Unlock()
		return nil, identity.ErrInvalidCredentials
	}
	s := p.issueLocked(a.user)
	p.mu.Unlock()

	p.Emit(identity.Event{Tag: identity.EventSignedIn, SessionID: s.ID, UserID: s.User.ID, Session: s})
	return s, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.User, error) {
	p.count("SignUp")
	email = strings.ToLower(strings.TrimSpace(email))
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[email]; ok {
		return nil, identity.ErrEmailTaken
	}
	p.seq++
	u := identity.User{ID: fmt.Sprintf("user-%d", p.seq), Email: email, CreatedAt: time.Now().UTC()}
	p.accounts[email] = account{user: u, password: password}
	return &u, nil
}

func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	p.count("SignOut")
	if p.SignOutErr != nil {
		return p.SignOutErr
	}
	var userID string
	p.mu.Lock()
	for k, s := range p.sessions {
		if s.ID == sessionID {
			userID = s.User.ID
			delete(p.sessions, k)
		}
	}
	p.mu.Unlock()

	p.Emit(identity.Event{Tag: identity.EventSignedOut, SessionID: sessionID, UserID: userID})
	return nil
}

func (p *Provider) GetSession(ctx context.Context, refreshToken string) (*identity.Session, error) {
	p.count("GetSession")
	if p.HoldGetSession != nil {
		select {
		case <-p.HoldGetSession:
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "get session")
		}
	}
	if p.BeforeGetSessionReturns != nil {
		p.BeforeGetSessionReturns()
	}
	if p.GetSessionErr != nil {
		return nil, p.GetSessionErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[refreshToken]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (p *Provider) Subscribe(fn func(identity.Event)) func() {
	return p.bus.Subscribe(fn)
}

// Profiles is an in-memory identity.ProfileSource.
type Profiles struct {
	mu       sync.Mutex
	profiles map[string]identity.Profile
	calls    int

	// Err fails every fetch when set.
	Err error
	// Hold, when set, blocks fetches until it is closed.
	Hold chan struct{}
}

func NewProfiles() *Profiles {
	return &Profiles{profiles: make(map[string]identity.Profile)}
}

func (p *Profiles) Set(userID, role string) {
	p.mu.Lock()
	p.profiles[userID] = identity.Profile{UserID: userID, Role: role, UpdatedAt: time.Now().UTC()}
	p.mu.Unlock()
}

func (p *Profiles) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *Profiles) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	p.mu.Lock()
	p.calls++
	hold := p.Hold
	p.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "get profile")
		}
	}
	if p.Err != nil {
		return nil, p.Err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.profiles[userID]
	if !ok {
		return nil, identity.ErrProfileNotFound
	}
	return &pr, nil
}
