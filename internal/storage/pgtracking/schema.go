package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking (
  id BIGSERIAL PRIMARY KEY,
  tracking_code TEXT NOT NULL,
  status TEXT NOT NULL,
  current_location TEXT NOT NULL,
  destination TEXT NOT NULL,
  delivery_date DATE NULL,
  shipper_name TEXT NOT NULL,
  shipper_address TEXT NOT NULL,
  receiver_name TEXT NOT NULL,
  receiver_address TEXT NOT NULL,
  comment TEXT NOT NULL DEFAULT '',
  last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_tracking_code UNIQUE (tracking_code),
  CONSTRAINT ck_tracking_status CHECK (status IN (
    'Pending', 'Processing', 'In Transit', 'Out for Delivery', 'Delivered', 'Failed Delivery'
  )),
  CONSTRAINT ck_tracking_updated_after_created CHECK (created_at <= last_updated)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_created_at ON tracking(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS tracking_history (
  id BIGSERIAL PRIMARY KEY,
  tracking_id BIGINT NOT NULL REFERENCES tracking(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  comment TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_history_tracking_id_created_at ON tracking_history(tracking_id, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
