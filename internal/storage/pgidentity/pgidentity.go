// Package pgidentity stores users, auth sessions and profiles in Postgres.
package pgidentity

import (
	"context"
	"time"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("auth session not found")
)

// AuthSession is a refresh-token session row. Only a hash of the token is kept.
type AuthSession struct {
	ID               string
	UserID           string
	RefreshHash      string
	CreatedAt        time.Time
	RefreshExpiresAt time.Time
	LastUsedAt       time.Time
	RevokedAt        *time.Time
}

type Storage struct {
	db *pgxpool.Pool
}

func NewWithPool(ctx context.Context, db *pgxpool.Pool) (*Storage, error) {
	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Storage) CreateUser(ctx context.Context, id, email, passwordHash string) (*identity.User, error) {
	var u identity.User
	err := s.db.QueryRow(ctx, `
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id, email, created_at
`, id, email, passwordHash).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, errors.Wrap(identity.ErrEmailTaken, "insert user")
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &u, nil
}

// GetUserByEmail returns the user and its password hash.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*identity.User, string, error) {
	var u identity.User
	var hash string
	err := s.db.QueryRow(ctx, `
SELECT id, email, created_at, password_hash
FROM users
WHERE email = $1
`, email).Scan(&u.ID, &u.Email, &u.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", errors.Wrap(ErrUserNotFound, "select user by email")
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "select user by email")
	}
	return &u, hash, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*identity.User, error) {
	var u identity.User
	err := s.db.QueryRow(ctx, `SELECT id, email, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrap(ErrUserNotFound, "select user by id")
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user by id")
	}
	return &u, nil
}
