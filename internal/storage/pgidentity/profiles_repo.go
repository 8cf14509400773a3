package pgidentity

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

var _ identity.ProfileSource = (*Storage)(nil)

func (s *Storage) GetProfile(ctx context.Context, userID string) (*identity.Profile, error) {
	var p identity.Profile
	err := s.db.QueryRow(ctx, `
SELECT id, role, display_name, updated_at
FROM profiles
WHERE id = $1
`, userID).Scan(&p.UserID, &p.Role, &p.DisplayName, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(identity.ErrProfileNotFound, "select profile")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select profile")
	}
	return &p, nil
}

// SetRole is the privilege-escalation path; nothing else writes roles.
func (s *Storage) SetRole(ctx context.Context, userID, role string) (*identity.Profile, error) {
	var p identity.Profile
	err := s.db.QueryRow(ctx, `
UPDATE profiles
SET role = $2, updated_at = now()
WHERE id = $1
RETURNING id, role, display_name, updated_at
`, userID, role).Scan(&p.UserID, &p.Role, &p.DisplayName, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(identity.ErrProfileNotFound, "update profile role")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update profile role")
	}
	return &p, nil
}
