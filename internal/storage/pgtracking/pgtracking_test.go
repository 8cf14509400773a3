package pgtracking

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "trackdesk_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/trackdesk_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func input(code string) models.TrackingCreateInput {
	d := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	return models.TrackingCreateInput{
		TrackingCode: code,
		TrackingFields: models.TrackingFields{
			Status:          "Pending",
			CurrentLocation: "Lagos hub",
			Destination:     "Abuja",
			DeliveryDate:    &d,
			ShipperName:     "Alice",
			ShipperAddress:  "1 Road",
			ReceiverName:    "Bob",
			ReceiverAddress: "2 Street",
		},
	}
}

func TestPGTracking_RepoFlow(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	require.NoError(t, st.Ping(ctx))

	created, err := st.CreateTracking(ctx, input("TRK-000001"))
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.False(t, created.LastUpdated.Before(created.CreatedAt))
	require.Equal(t, "2026-10-20", created.DeliveryDate.Format("2006-01-02"))

	got, err := st.GetTrackingByCode(ctx, "TRK-000001")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Lagos hub", got.CurrentLocation)

	hist, err := st.ListHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "Pending", hist[0].Status)

	// duplicate code: conflict, still exactly one row
	_, err = st.CreateTracking(ctx, input("TRK-000001"))
	require.ErrorIs(t, err, ErrDuplicateCode)
	list, err := st.ListTrackings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	f := created.Fields()
	f.Status = "In Transit"
	f.CurrentLocation = "Ibadan"
	upd, err := st.UpdateTracking(ctx, "TRK-000001", f)
	require.NoError(t, err)
	require.Equal(t, "In Transit", upd.Status)
	require.Equal(t, "TRK-000001", upd.TrackingCode)
	require.False(t, upd.LastUpdated.Before(upd.CreatedAt))

	// unchanged status/location/comment adds no history
	f.ReceiverName = "Bobby"
	_, err = st.UpdateTracking(ctx, "TRK-000001", f)
	require.NoError(t, err)

	hist, err = st.ListHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "In Transit", hist[0].Status)

	_, err = st.UpdateTracking(ctx, "NOPE-000", f)
	require.ErrorIs(t, err, ErrNotFound)

	second, err := st.CreateTracking(ctx, input("TRK-000002"))
	require.NoError(t, err)
	list, err = st.ListTrackings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)

	code, err := st.DeleteTracking(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "TRK-000001", code)

	_, err = st.GetTrackingByCode(ctx, "TRK-000001")
	require.True(t, errors.Is(err, ErrNotFound))
	_, err = st.GetTrackingByID(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
	hist, err = st.ListHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, hist)

	_, err = st.DeleteTracking(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGTracking_SchemaRejectsBadRows(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	in := input("TRK-BAD001")
	in.Status = "Lost"
	_, err := st.CreateTracking(ctx, in)
	require.Error(t, err)

	_, err = st.db.Exec(ctx, `
INSERT INTO tracking (tracking_code, status, current_location, destination, shipper_name, shipper_address,
  receiver_name, receiver_address, created_at, last_updated)
VALUES ('TRK-BAD002', 'Pending', 'a', 'b', 'c', 'd', 'e', 'f', now(), now() - interval '1 day')`)
	require.Error(t, err)

	// schema init is idempotent
	require.NoError(t, st.initSchema(ctx))
}
