package pgidentity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateSession(ctx context.Context, as AuthSession) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO auth_sessions (id, user_id, refresh_hash, created_at, refresh_expires_at, last_used_at)
VALUES ($1, $2, $3, $4, $5, $4)
`, as.ID, as.UserID, as.RefreshHash, as.CreatedAt.UTC(), as.RefreshExpiresAt.UTC())
	return errors.Wrap(err, "insert auth session")
}

func (s *Storage) GetSession(ctx context.Context, id string) (*AuthSession, error) {
	var as AuthSession
	err := s.db.QueryRow(ctx, `
SELECT id, user_id, refresh_hash, created_at, refresh_expires_at, last_used_at, revoked_at
FROM auth_sessions
WHERE id = $1
`, id).Scan(&as.ID, &as.UserID, &as.RefreshHash, &as.CreatedAt, &as.RefreshExpiresAt, &as.LastUsedAt, &as.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(ErrSessionNotFound, "select auth session")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select auth session")
	}
	return &as, nil
}

func (s *Storage) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE auth_sessions SET last_used_at = $2 WHERE id = $1`, id, at.UTC())
	return errors.Wrap(err, "touch auth session")
}

// RevokeSession marks a live session revoked and returns its user id.
func (s *Storage) RevokeSession(ctx context.Context, id string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
UPDATE auth_sessions
SET revoked_at = now()
WHERE id = $1 AND revoked_at IS NULL
RETURNING user_id
`, id).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errors.Wrap(ErrSessionNotFound, "revoke auth session")
	}
	if err != nil {
		return "", errors.Wrap(err, "revoke auth session")
	}
	return userID, nil
}

// PurgeSessions deletes sessions that expired or were revoked before the cutoff.
func (s *Storage) PurgeSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
DELETE FROM auth_sessions
WHERE refresh_expires_at < $1
   OR (revoked_at IS NOT NULL AND revoked_at < $1)
`, before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge auth sessions")
	}
	return tag.RowsAffected(), nil
}
