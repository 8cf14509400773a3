package pgidentity

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
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
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, "postgres://admin:admin@"+host+":"+port.Port()+"/trackdesk_test?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	st, err := NewWithPool(ctx, pool)
	require.NoError(t, err)
	return st
}

func TestPGIdentity_UsersAndProfiles(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	id := uuid.NewString()
	u, err := st.CreateUser(ctx, id, "ops@example.com", "hash")
	require.NoError(t, err)
	require.Equal(t, id, u.ID)

	_, err = st.CreateUser(ctx, uuid.NewString(), "ops@example.com", "hash")
	require.ErrorIs(t, err, identity.ErrEmailTaken)

	got, hash, err := st.GetUserByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)
	require.Equal(t, "hash", hash)

	_, _, err = st.GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	p, err := st.GetProfile(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "user", p.Role)
	require.Equal(t, "ops", p.DisplayName)

	p, err = st.SetRole(ctx, id, identity.RoleAdmin)
	require.NoError(t, err)
	require.True(t, p.IsAdmin())

	_, err = st.GetProfile(ctx, uuid.NewString())
	require.ErrorIs(t, err, identity.ErrProfileNotFound)
	_, err = st.SetRole(ctx, uuid.NewString(), identity.RoleAdmin)
	require.ErrorIs(t, err, identity.ErrProfileNotFound)

	byID, err := st.GetUserByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", byID.Email)
}

func TestPGIdentity_Sessions(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, uuid.NewString(), "a@example.com", "hash")
	require.NoError(t, err)

	now := time.Now().UTC()
	live := AuthSession{ID: uuid.NewString(), UserID: u.ID, RefreshHash: "h1", CreatedAt: now, RefreshExpiresAt: now.Add(time.Hour)}
	old := AuthSession{ID: uuid.NewString(), UserID: u.ID, RefreshHash: "h2", CreatedAt: now.Add(-48 * time.Hour), RefreshExpiresAt: now.Add(-24 * time.Hour)}
	require.NoError(t, st.CreateSession(ctx, live))
	require.NoError(t, st.CreateSession(ctx, old))

	got, err := st.GetSession(ctx, live.ID)
	require.NoError(t, err)
	require.Equal(t, "h1", got.RefreshHash)
	require.Nil(t, got.RevokedAt)

	require.NoError(t, st.TouchSession(ctx, live.ID, now.Add(time.Minute)))

	userID, err := st.RevokeSession(ctx, live.ID)
	require.NoError(t, err)
	require.Equal(t, u.ID, userID)
	_, err = st.RevokeSession(ctx, live.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	got, err = st.GetSession(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)

	n, err := st.PurgeSessions(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = st.PurgeSessions(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = st.GetSession(ctx, live.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
