package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
)

const mirrorTimeout = 3 * time.Second

// ProfileResolver fetches profiles and turns the outcome into a reducer event.
type ProfileResolver struct {
	source identity.ProfileSource
}

func NewProfileResolver(source identity.ProfileSource) *ProfileResolver {
	return &ProfileResolver{source: source}
}

func (r *ProfileResolver) Resolve(ctx context.Context, userID string) Event {
	p, err := r.source.GetProfile(ctx, userID)
	if err != nil {
		slog.Warn("auth: profile fetch failed", "user_id", userID, "err", err)
		return ProfileFailed{UserID: userID, Err: err}
	}
	return ProfileResolved{UserID: userID, Profile: p}
}

// Gate is the auth context of one client. Provider calls never run while mu is held.
type Gate struct {
	provider identity.Provider
	profiles *ProfileResolver
	store    *SessionStore
	reducer  Reducer

	mu        sync.Mutex
	state     State
	candidate string
	changed   chan struct{}
	disposed  bool

	subscribe sync.Once
	unsub     func()

	bgCtx    context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

func NewGate(provider identity.Provider, profiles identity.ProfileSource, tokens TokenStorage, privilegedID string) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gate{
		provider: provider,
		profiles: NewProfileResolver(profiles),
		store:    NewSessionStore(tokens),
		reducer:  Reducer{PrivilegedID: privilegedID},
		state:    InitialState(),
		changed:  make(chan struct{}),
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// Initialize subscribes to the provider and restores the persisted session.
// Loading stays true until the restore and the profile fetch for the restored
// user have both settled.
func (g *Gate) Initialize(ctx context.Context) {
	g.dispatch(InitStarted{})
	g.subscribe.Do(func() {
		unsub := g.provider.Subscribe(g.onProviderEvent)
		g.mu.Lock()
		if g.disposed {
			g.mu.Unlock()
			unsub()
			return
		}
		g.unsub = unsub
		g.mu.Unlock()
	})

	tok := g.store.Stored(ctx)
	if tok == nil {
		g.dispatch(SessionRestored{})
		return
	}

	if !g.setCandidate(tok.SessionID) {
		// signed in or out while reading the mirror
		g.dispatch(SessionRestored{})
		return
	}
	defer g.setCandidate("")

	sess, err := g.provider.GetSession(ctx, tok.RefreshToken)
	if err != nil {
		slog.Warn("auth: restore session failed", "session_id", tok.SessionID, "err", err)
		g.dispatch(RestoreFailed{Err: err})
		return
	}
	if sess == nil {
		g.store.Forget(ctx)
		g.dispatch(SessionRestored{})
		return
	}
	prev, next := g.dispatch(SessionRestored{Session: sess})
	if next.SessionID() == sess.ID {
		g.store.Persist(ctx, sess)
	}
	if uid := next.UserID(); uid != "" && uid != prev.UserID() {
		g.dispatch(g.profiles.Resolve(ctx, uid))
	}
}

// SignIn returns nil or an apperr of kind Auth or Backend.
func (g *Gate) SignIn(ctx context.Context, email, password string) error {
	g.dispatch(SignInStarted{})
	defer g.dispatch(SignInFinished{})

	sess, err := g.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return apperr.Auth("Invalid email or password", err)
		}
		return apperr.Backend("sign in unavailable", err)
	}
	if sess == nil {
		return apperr.Backend("sign in unavailable", errors.New("provider returned no session"))
	}

	g.mu.Lock()
	// a restore still in flight must not match provider events any more
	g.candidate = ""
	_, next := g.applyLocked(SignInSucceeded{Session: sess})
	g.mu.Unlock()
	g.store.Persist(ctx, sess)
	if uid := next.UserID(); uid != "" {
		g.dispatch(g.profiles.Resolve(ctx, uid))
	}
	return nil
}

// SignOut always clears the local state, whatever the provider says.
func (g *Gate) SignOut(ctx context.Context) {
	sid := g.Snapshot().SessionID()
	if sid != "" {
		if err := g.provider.SignOut(ctx, sid); err != nil {
			slog.Warn("auth: provider sign out failed", "session_id", sid, "err", err)
		}
	}
	g.store.Forget(ctx)
	g.mu.Lock()
	g.candidate = ""
	g.applyLocked(SignedOut{})
	g.mu.Unlock()
}

func (g *Gate) RefreshProfile(ctx context.Context) {
	uid := g.Snapshot().UserID()
	if uid == "" {
		return
	}
	g.dispatch(g.profiles.Resolve(ctx, uid))
}

// Dispose unsubscribes and waits for background profile fetches.
func (g *Gate) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	unsub := g.unsub
	g.unsub = nil
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	g.bgCancel()
	g.wg.Wait()
}

func (g *Gate) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Changes is closed on the next state change.
func (g *Gate) Changes() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.changed
}

func (g *Gate) WaitReady(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		s, ch := g.state, g.changed
		g.mu.Unlock()
		if !s.Loading {
			return s, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

func (g *Gate) dispatch(ev Event) (prev, next State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(ev)
}

func (g *Gate) applyLocked(ev Event) (prev, next State) {
	prev = g.state
	next = g.reducer.Reduce(prev, ev)
	g.state = next
	close(g.changed)
	g.changed = make(chan struct{})
	return prev, next
}

// setCandidate reports false when the state already holds a newer session
// than the one being restored.
func (g *Gate) setCandidate(sid string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sid != "" && g.state.sessionSuperseded {
		return false
	}
	g.candidate = sid
	return true
}

func (g *Gate) onProviderEvent(ev identity.Event) {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}

	if ev.Tag == identity.EventUserUpdated {
		uid := g.state.UserID()
		g.mu.Unlock()
		if uid != "" && uid == ev.UserID {
			g.refreshAsync(uid)
		}
		return
	}

	sid := g.state.SessionID()
	if ev.SessionID == "" || (ev.SessionID != sid && ev.SessionID != g.candidate) {
		g.mu.Unlock()
		return
	}
	if ev.Session == nil && ev.Tag != identity.EventSignedOut {
		// remote deliveries carry no credentials
		g.mu.Unlock()
		return
	}
	prev, next := g.applyLocked(SessionChanged{Tag: ev.Tag, Session: ev.Session})
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(g.bgCtx, mirrorTimeout)
	defer cancel()
	switch {
	case ev.Tag == identity.EventSignedOut:
		if prev.SessionID() == ev.SessionID {
			g.store.Forget(ctx)
		}
	case ev.Session != nil:
		g.store.Persist(ctx, ev.Session)
	}

	if uid := next.UserID(); uid != "" && uid != prev.UserID() {
		g.refreshAsync(uid)
	}
}

func (g *Gate) refreshAsync(userID string) {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		g.dispatch(g.profiles.Resolve(g.bgCtx, userID))
	}()
}
