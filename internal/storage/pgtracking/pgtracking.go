package pgtracking

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("tracking not found")
	ErrDuplicateCode = errors.New("tracking code already exists")
)

const uniqueViolation = "23505"

type Storage struct {
	db    *pgxpool.Pool
	owned bool
}

func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s, err := NewWithPool(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewWithPool uses a pool owned by the caller; Close leaves it open.
func NewWithPool(ctx context.Context, db *pgxpool.Pool) (*Storage, error) {
	s := &Storage{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.Ping(ctx), "pg ping")
}

func (s *Storage) Close() {
	if s.db != nil && s.owned {
		s.db.Close()
	}
}
