package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BearBump/TrackDesk/internal/cache"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/pkg/errors"
)

// TokenStorageKey names the persisted token mirror.
const TokenStorageKey = "trackdesk-auth-token"

type StoredToken struct {
	SessionID    string    `json:"session_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenStorage persists the token mirror of one client context.
// Load returns nil, nil when nothing is stored.
type TokenStorage interface {
	Load(ctx context.Context) (*StoredToken, error)
	Save(ctx context.Context, t StoredToken) error
	Clear(ctx context.Context) error
}

type MemoryStorage struct {
	mu  sync.Mutex
	tok *StoredToken
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(context.Context) (*StoredToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return nil, nil
	}
	cp := *m.tok
	return &cp, nil
}

func (m *MemoryStorage) Save(_ context.Context, t StoredToken) error {
	m.mu.Lock()
	m.tok = &t
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(context.Context) error {
	m.mu.Lock()
	m.tok = nil
	m.mu.Unlock()
	return nil
}

// FileStorage keeps the mirror in a 0600 JSON file.
type FileStorage struct {
	Path string
}

func DefaultFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "home dir")
	}
	return filepath.Join(home, ".trackdesk", TokenStorageKey+".json"), nil
}

func (f FileStorage) Load(context.Context) (*StoredToken, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read token file")
	}
	var t StoredToken
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, errors.Wrap(err, "decode token file")
	}
	return &t, nil
}

func (f FileStorage) Save(_ context.Context, t StoredToken) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	b, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	return errors.Wrap(os.WriteFile(f.Path, b, 0o600), "write token file")
}

func (f FileStorage) Clear(context.Context) error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

// CacheStorage keeps one browser's mirror in the shared cache.
type CacheStorage struct {
	c   cache.BytesCache
	key string
	ttl time.Duration
}

func NewCacheStorage(c cache.BytesCache, browserID string, ttl time.Duration) *CacheStorage {
	return &CacheStorage{c: c, key: TokenStorageKey + ":" + browserID, ttl: ttl}
}

func (s *CacheStorage) Key() string { return s.key }

func (s *CacheStorage) Load(ctx context.Context) (*StoredToken, error) {
	b, ok, err := s.c.Get(ctx, s.key)
	if err != nil || !ok {
		return nil, err
	}
	var t StoredToken
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, errors.Wrap(err, "decode cached token")
	}
	return &t, nil
}

func (s *CacheStorage) Save(ctx context.Context, t StoredToken) error {
	b, err := json.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "encode token")
	}
	return s.c.Set(ctx, s.key, b, s.ttl)
}

func (s *CacheStorage) Clear(ctx context.Context) error {
	return s.c.Delete(ctx, s.key)
}

// SessionStore mirrors the gate's session into TokenStorage. Storage faults
// are logged and otherwise ignored.
type SessionStore struct {
	tokens TokenStorage
}

func NewSessionStore(tokens TokenStorage) *SessionStore {
	if tokens == nil {
		tokens = NewMemoryStorage()
	}
	return &SessionStore{tokens: tokens}
}

func (s *SessionStore) Stored(ctx context.Context) *StoredToken {
	t, err := s.tokens.Load(ctx)
	if err != nil {
		slog.Warn("auth: load token mirror failed", "err", err)
		return nil
	}
	if t == nil || t.RefreshToken == "" {
		return nil
	}
	return t
}

func (s *SessionStore) Persist(ctx context.Context, sess *identity.Session) {
	if sess == nil {
		return
	}
	err := s.tokens.Save(ctx, StoredToken{
		SessionID:    sess.ID,
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
	})
	if err != nil {
		slog.Warn("auth: save token mirror failed", "session_id", sess.ID, "err", err)
	}
}

func (s *SessionStore) Forget(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		slog.Warn("auth: clear token mirror failed", "err", err)
	}
}
