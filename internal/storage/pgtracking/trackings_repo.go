package pgtracking

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const trackingColumns = `
  id, tracking_code, status, current_location, destination, delivery_date,
  shipper_name, shipper_address, receiver_name, receiver_address, comment,
  last_updated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracking(row rowScanner) (*models.Tracking, error) {
	var t models.Tracking
	if err := row.Scan(
		&t.ID, &t.TrackingCode, &t.Status, &t.CurrentLocation, &t.Destination, &t.DeliveryDate,
		&t.ShipperName, &t.ShipperAddress, &t.ReceiverName, &t.ReceiverAddress, &t.Comment,
		&t.LastUpdated, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func mapErr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(ErrNotFound, msg)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Wrap(ErrDuplicateCode, msg)
	}
	return errors.Wrap(err, msg)
}

// CreateTracking inserts the record and its first history entry in one transaction.
func (s *Storage) CreateTracking(ctx context.Context, in models.TrackingCreateInput) (*models.Tracking, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTracking(tx.QueryRow(ctx, `
INSERT INTO tracking (
  tracking_code, status, current_location, destination, delivery_date,
  shipper_name, shipper_address, receiver_name, receiver_address, comment
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING`+trackingColumns,
		in.TrackingCode, in.Status, in.CurrentLocation, in.Destination, in.DeliveryDate,
		in.ShipperName, in.ShipperAddress, in.ReceiverName, in.ReceiverAddress, in.Comment,
	))
	if err != nil {
		return nil, mapErr(err, "insert tracking")
	}

	if err := appendHistory(ctx, tx, t.ID, t.Status, t.CurrentLocation, t.Comment); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return t, nil
}

func (s *Storage) ListTrackings(ctx context.Context) ([]*models.Tracking, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+trackingColumns+`
FROM tracking
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select trackings")
	}
	defer rows.Close()

	out := make([]*models.Tracking, 0)
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetTrackingByCode(ctx context.Context, code string) (*models.Tracking, error) {
	t, err := scanTracking(s.db.QueryRow(ctx, `
SELECT`+trackingColumns+`
FROM tracking
WHERE tracking_code = $1
`, code))
	if err != nil {
		return nil, mapErr(err, "select tracking by code")
	}
	return t, nil
}

func (s *Storage) GetTrackingByID(ctx context.Context, id uint64) (*models.Tracking, error) {
	t, err := scanTracking(s.db.QueryRow(ctx, `
SELECT`+trackingColumns+`
FROM tracking
WHERE id = $1
`, id))
	if err != nil {
		return nil, mapErr(err, "select tracking by id")
	}
	return t, nil
}

// UpdateTracking rewrites every editable field of the record with this code.
// A history entry is appended when status, location or comment change.
func (s *Storage) UpdateTracking(ctx context.Context, code string, f models.TrackingFields) (*models.Tracking, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	var status, location, comment string
	err = tx.QueryRow(ctx, `
SELECT id, status, current_location, comment
FROM tracking
WHERE tracking_code = $1
FOR UPDATE
`, code).Scan(&id, &status, &location, &comment)
	if err != nil {
		return nil, mapErr(err, "lock tracking")
	}

	t, err := scanTracking(tx.QueryRow(ctx, `
UPDATE tracking
SET
  status = $2,
  current_location = $3,
  destination = $4,
  delivery_date = $5,
  shipper_name = $6,
  shipper_address = $7,
  receiver_name = $8,
  receiver_address = $9,
  comment = $10,
  last_updated = GREATEST(now(), created_at)
WHERE id = $1
RETURNING`+trackingColumns,
		id, f.Status, f.CurrentLocation, f.Destination, f.DeliveryDate,
		f.ShipperName, f.ShipperAddress, f.ReceiverName, f.ReceiverAddress, f.Comment,
	))
	if err != nil {
		return nil, mapErr(err, "update tracking")
	}

	if t.Status != status || t.CurrentLocation != location || t.Comment != comment {
		if err := appendHistory(ctx, tx, t.ID, t.Status, t.CurrentLocation, t.Comment); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return t, nil
}

// DeleteTracking removes the record and, by cascade, its history.
// It returns the deleted record's code.
func (s *Storage) DeleteTracking(ctx context.Context, id uint64) (string, error) {
	var code string
	err := s.db.QueryRow(ctx, `DELETE FROM tracking WHERE id = $1 RETURNING tracking_code`, id).Scan(&code)
	if err != nil {
		return "", mapErr(err, "delete tracking")
	}
	return code, nil
}
