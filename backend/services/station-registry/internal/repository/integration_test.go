package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	registrydb "evregistry/backend/services/station-registry/internal/db"
	"evregistry/backend/services/station-registry/internal/geo"
	"evregistry/backend/services/station-registry/internal/models"
)

// startPostgres runs a throwaway Postgres 16, or reuses REGISTRY_TEST_PG_DSN when set.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("REGISTRY_INTEGRATION") != "1" {
		t.Skip("set REGISTRY_INTEGRATION=1 to run Postgres integration tests")
	}
	ctx := context.Background()

	dsn := os.Getenv("REGISTRY_TEST_PG_DSN")
	if dsn == "" {
		pg, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("registry"),
			postgres.WithUsername("registry"),
			postgres.WithPassword("registry"),
			postgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, pg)
		require.NoError(t, err)

		dsn, err = pg.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, registrydb.Migrate(ctx, db))
	return db
}

func TestPostgresRoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	users := NewUserRepository(db)
	stations := NewStationRepository(db)

	owner := &models.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "h", Role: "user"}
	require.NoError(t, users.Create(ctx, owner))
	assert.ErrorIs(t, users.Create(ctx, &models.User{Name: "Dup", Email: "ANN@x.com", PasswordHash: "h"}), ErrEmailTaken)

	legacy := &models.User{Name: "Old", Email: "old@x.com", PasswordHash: "h"}
	require.NoError(t, users.Create(ctx, legacy))
	found, err := users.FindByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.Empty(t, found.Role)
	require.NoError(t, users.UpdateRole(ctx, legacy.ID, "user"))

	st := &models.Station{
		Name:          "Central",
		Location:      geo.Point{Type: geo.PointType, Coordinates: []float64{13.4, 52.5}},
		PowerOutput:   50,
		Slots:         4,
		ConnectorType: "CCS",
		Status:        models.StationStatusActive,
		CreatedBy:     owner.ID,
	}
	require.NoError(t, stations.Save(ctx, st))

	got, err := stations.FindByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{13.4, 52.5}, got.Location.Coordinates)
	require.NotNil(t, got.Creator)
	assert.Equal(t, "ann@x.com", got.Creator.Email)

	list, err := stations.Find(ctx, models.StationFilter{ConnectorType: "Type 2"})
	require.NoError(t, err)
	assert.Empty(t, list)

	inactive := models.StationStatusInactive
	updated, err := stations.UpdateByID(ctx, st.ID, models.StationPatch{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, inactive, updated.Status)
	assert.Equal(t, "Central", updated.Name)

	require.NoError(t, stations.DeleteByID(ctx, st.ID))
	_, err = stations.FindByID(ctx, st.ID)
	assert.ErrorIs(t, err, ErrStationNotFound)
}
