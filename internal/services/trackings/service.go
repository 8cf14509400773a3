package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackDesk/internal/apperr"
	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/cache"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/storage/pgtracking"
	"github.com/pkg/errors"
)

const listKey = "tracking:list"

type Repository interface {
	CreateTracking(ctx context.Context, in models.TrackingCreateInput) (*models.Tracking, error)
	ListTrackings(ctx context.Context) ([]*models.Tracking, error)
	GetTrackingByCode(ctx context.Context, code string) (*models.Tracking, error)
	GetTrackingByID(ctx context.Context, id uint64) (*models.Tracking, error)
	UpdateTracking(ctx context.Context, code string, f models.TrackingFields) (*models.Tracking, error)
	DeleteTracking(ctx context.Context, id uint64) (string, error)
	ListHistory(ctx context.Context, trackingID uint64) ([]*models.HistoryEntry, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo  Repository
	cache cache.BytesCache
	ttl   time.Duration

	pub   Publisher
	topic string
	now   func() time.Time

	// bumped by every invalidation; a read that overlaps one does not cache its result
	gen atomic.Uint64
}

// New builds the service. c may be nil; a zero ttl disables caching.
func New(repo Repository, c cache.BytesCache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl, now: time.Now}
}

// WithChanges publishes a TrackingChanged message to topic after every write.
func (s *Service) WithChanges(pub Publisher, topic string) *Service {
	s.pub = pub
	s.topic = topic
	return s
}

func (s *Service) cacheOn() bool {
	return s.cache != nil && s.ttl > 0
}

// List returns every record, newest created first.
func (s *Service) List(ctx context.Context) ([]*models.Tracking, error) {
	var out []*models.Tracking
	if s.readCache(ctx, listKey, &out) {
		return out, nil
	}

	gen := s.gen.Load()
	out, err := s.repo.ListTrackings(ctx)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.writeCache(ctx, listKey, out, gen)
	return out, nil
}

// GetByCode returns exactly one record with its history.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Tracking, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.NotFound("Tracking record not found")
	}

	var cached models.Tracking
	if s.readCache(ctx, codeKey(code), &cached) {
		return &cached, nil
	}

	gen := s.gen.Load()
	t, err := s.repo.GetTrackingByCode(ctx, code)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	hist, err := s.repo.ListHistory(ctx, t.ID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	t.History = hist
	s.writeCache(ctx, codeKey(code), t, gen)
	return t, nil
}

func (s *Service) GetByID(ctx context.Context, id uint64) (*models.Tracking, error) {
	if id == 0 {
		return nil, apperr.Validation("tracking id is required", map[string]string{"id": "Tracking id is required"})
	}
	t, err := s.repo.GetTrackingByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return t, nil
}

func (s *Service) Create(ctx context.Context, in models.TrackingCreateInput) (*models.Tracking, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.CreateTracking(ctx, in)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.invalidate(ctx, listKey)
	s.announce(ctx, messages.ActionCreated, t.ID, t.TrackingCode)
	return t, nil
}

// Update rewrites the editable fields. The tracking code itself never changes.
func (s *Service) Update(ctx context.Context, code string, f models.TrackingFields) (*models.Tracking, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.NotFound("Tracking record not found")
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.UpdateTracking(ctx, code, f)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	s.invalidate(ctx, listKey, codeKey(t.TrackingCode))
	s.announce(ctx, messages.ActionUpdated, t.ID, t.TrackingCode)
	return t, nil
}

// Delete removes the record permanently and returns its code.
func (s *Service) Delete(ctx context.Context, id uint64) (string, error) {
	if id == 0 {
		return "", apperr.Validation("tracking id is required", map[string]string{"id": "Tracking id is required"})
	}
	code, err := s.repo.DeleteTracking(ctx, id)
	if err != nil {
		return "", mapRepoErr(err)
	}
	s.invalidate(ctx, listKey, codeKey(code))
	s.announce(ctx, messages.ActionDeleted, id, code)
	return code, nil
}

// ApplyChange drops the cache keys a write made by another process touched.
func (s *Service) ApplyChange(ctx context.Context, msg messages.TrackingChanged) error {
	if msg.TrackingCode == "" && msg.Action != messages.ActionCreated {
		return errors.New("tracking_code is required")
	}
	keys := []string{listKey}
	if msg.TrackingCode != "" {
		keys = append(keys, codeKey(msg.TrackingCode))
	}
	s.invalidate(ctx, keys...)
	return nil
}

// HandleChangeMessage is the consumer callback for the tracking.changed topic.
func (s *Service) HandleChangeMessage(ctx context.Context) func(key, value []byte) error {
	return func(_, value []byte) error {
		var msg messages.TrackingChanged
		if err := json.Unmarshal(value, &msg); err != nil {
			slog.Warn("trackings: bad change message", "err", err)
			return nil
		}
		if err := s.ApplyChange(ctx, msg); err != nil {
			slog.Warn("trackings: skip change message", "err", err)
		}
		return nil
	}
}

func (s *Service) readCache(ctx context.Context, key string, dst any) bool {
	if !s.cacheOn() {
		return false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Debug("trackings: cache get failed", "key", key, "err", err)
		return false
	}
	if !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

// writeCache stores v unless an invalidation ran since gen was read. One that
// lands while Set is in flight removes the entry again.
func (s *Service) writeCache(ctx context.Context, key string, v any, gen uint64) {
	if !s.cacheOn() || s.gen.Load() != gen {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
		slog.Debug("trackings: cache set failed", "key", key, "err", err)
		return
	}
	if s.gen.Load() != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			slog.Warn("trackings: cache invalidation failed", "keys", []string{key}, "err", err)
		}
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	s.gen.Add(1)
	if err := s.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("trackings: cache invalidation failed", "keys", keys, "err", err)
	}
}

func (s *Service) announce(ctx context.Context, action messages.ChangeAction, id uint64, code string) {
	if s.pub == nil || s.topic == "" {
		return
	}
	b, err := json.Marshal(messages.TrackingChanged{
		Action:       action,
		TrackingID:   id,
		TrackingCode: code,
		At:           s.now().UTC(),
	})
	if err != nil {
		return
	}
	if err := s.pub.Publish(ctx, s.topic, []byte(code), b); err != nil {
		slog.Warn("trackings: publish change failed", "action", action, "tracking_code", code, "err", err)
	}
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, pgtracking.ErrNotFound):
		return apperr.NotFound("Tracking record not found")
	case errors.Is(err, pgtracking.ErrDuplicateCode):
		return apperr.Conflict("Tracking code already exists", "tracking_code")
	default:
		return apperr.Backend("tracking store unavailable", err)
	}
}

func codeKey(code string) string {
	return fmt.Sprintf("tracking:code:%s:current", code)
}
