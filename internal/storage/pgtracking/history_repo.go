package pgtracking

import (
	"context"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func appendHistory(ctx context.Context, tx pgx.Tx, trackingID uint64, status, location, comment string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO tracking_history (tracking_id, status, location, comment, created_at)
VALUES ($1,$2,$3,$4, now())
`, trackingID, status, location, comment)
	return errors.Wrap(err, "insert tracking history")
}

// ListHistory returns the entries of a record, newest first.
func (s *Storage) ListHistory(ctx context.Context, trackingID uint64) ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, tracking_id, status, location, comment, created_at
FROM tracking_history
WHERE tracking_id = $1
ORDER BY created_at DESC, id DESC
`, trackingID)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	out := make([]*models.HistoryEntry, 0)
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.TrackingID, &h.Status, &h.Location, &h.Comment, &h.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		out = append(out, &h)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
