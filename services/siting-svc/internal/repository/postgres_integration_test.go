//go:build integration

package repository

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/migrations"
	"siting/pkg/config"
	"siting/pkg/database"
	"siting/pkg/domain"
)

// Запуск: INTEGRATION_TESTS=1 POSTGRES_HOST=... go test -tags integration ./...
func requirePostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("skipping integration test; set INTEGRATION_TESTS=1 to run")
	}

	port, _ := strconv.Atoi(envOr("POSTGRES_PORT", "5432"))
	cfg := config.DatabaseConfig{
		Enabled:         true,
		Host:            envOr("POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOr("POSTGRES_DB", "siting_test"),
		Username:        envOr("POSTGRES_USER", "postgres"),
		Password:        envOr("POSTGRES_PASSWORD", "postgres"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		AutoMigrate:     true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(pool.Close)

	version, err := database.Migrate(ctx, pool, migrations.PostgresMigrations, "postgres")
	require.NoError(t, err)
	require.Positive(t, version)
	return pool
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestPostgresRepository_Integration(t *testing.T) {
	db := requirePostgres(t)
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	run := &Run{
		Mode:           "health",
		RequestHash:    "integration-" + time.Now().Format("150405.000000"),
		BoundingBox:    domain.BoundingBox{MinLat: 55.5, MinLon: 37.3, MaxLat: 55.9, MaxLon: 37.9},
		MaxFacilities:  3,
		SelectedSites:  2,
		CoverageBefore: 0.41,
		CoverageAfter:  0.77,
		Reason:         "budget",
		Seed:           42,
		ComputationMs:  12.5,
		Result:         []byte(`{"selected_sites":[]}`),
	}
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.RequestHash, got.RequestHash)
	assert.Equal(t, run.BoundingBox, got.BoundingBox)
	assert.InDelta(t, 0.77, got.CoverageAfter, 1e-9)
	assert.JSONEq(t, string(run.Result), string(got.Result))

	runs, total, err := repo.List(ctx, ListOptions{Limit: 5, Modes: []string{"health"}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
	require.NotEmpty(t, runs)
	assert.Equal(t, "health", runs[0].Mode)

	require.NoError(t, repo.Ping(ctx))
}
