package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/domain"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupMockDB(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresRepository(&pgxMockAdapter{mock: mock})
}

var columns = []string{
	"id", "mode", "request_hash",
	"min_lat", "min_lon", "max_lat", "max_lon",
	"max_facilities", "selected_sites",
	"coverage_before", "coverage_after", "reason",
	"seed", "computation_ms", "result", "created_at",
}

func sampleRun() *Run {
	return &Run{
		ID:             uuid.MustParse("0b6b9c1e-8f0a-4c55-9d7e-2f1b8f3d9a10"),
		Mode:           "healthcare",
		RequestHash:    "abc123",
		BoundingBox:    domain.NewBoundingBox(0, 0, 0.09, 0.09),
		MaxFacilities:  3,
		SelectedSites:  3,
		CoverageBefore: 0.2,
		CoverageAfter:  0.65,
		Seed:           42,
		ComputationMs:  12.5,
		Result:         []byte(`{"selected_sites":[]}`),
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func addRun(rows *pgxmock.Rows, r *Run) *pgxmock.Rows {
	return rows.AddRow(
		r.ID, r.Mode, r.RequestHash,
		r.BoundingBox.MinLat, r.BoundingBox.MinLon, r.BoundingBox.MaxLat, r.BoundingBox.MaxLon,
		r.MaxFacilities, r.SelectedSites,
		r.CoverageBefore, r.CoverageAfter, r.Reason,
		r.Seed, r.ComputationMs, r.Result, r.CreatedAt,
	)
}

func TestPostgresRepository_Save(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	run := sampleRun()

	mock.ExpectExec(`INSERT INTO optimization_runs`).
		WithArgs(
			run.ID, run.Mode, run.RequestHash,
			run.BoundingBox.MinLat, run.BoundingBox.MinLon, run.BoundingBox.MaxLat, run.BoundingBox.MaxLon,
			run.MaxFacilities, run.SelectedSites,
			run.CoverageBefore, run.CoverageAfter, run.Reason,
			run.Seed, run.ComputationMs, run.Result, run.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Save_AssignsID(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	run := sampleRun()
	run.ID = uuid.Nil
	run.CreatedAt = time.Time{}

	mock.ExpectExec(`INSERT INTO optimization_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Save(context.Background(), run))
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Save_Error(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO optimization_runs`).
		WillReturnError(errors.New("connection reset"))

	err := repo.Save(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert run")
}

func TestPostgresRepository_Get(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	want := sampleRun()
	mock.ExpectQuery(`SELECT .* FROM optimization_runs WHERE id = \$1`).
		WithArgs(want.ID).
		WillReturnRows(addRun(pgxmock.NewRows(columns), want))

	got, err := repo.Get(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM optimization_runs WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestPostgresRepository_List_FilterByMode(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	modes := []string{"waste"}
	run := sampleRun()
	run.Mode = "waste"

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM optimization_runs WHERE TRUE AND mode = ANY\(\$1\)`).
		WithArgs(pq.Array(modes)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(pq.Array(modes), 5, 10).
		WillReturnRows(addRun(pgxmock.NewRows(columns), run))
	mock.ExpectCommit()

	runs, total, err := repo.List(context.Background(), ListOptions{Limit: 5, Offset: 10, Modes: modes})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, runs, 1)
	assert.Equal(t, "waste", runs[0].Mode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List_DefaultLimit(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM optimization_runs WHERE TRUE`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(defaultListLimit, 0).
		WillReturnRows(pgxmock.NewRows(columns))
	mock.ExpectCommit()

	runs, total, err := repo.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_List_CountFails(t *testing.T) {
	mock, repo := setupMockDB(t)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	_, _, err := repo.List(context.Background(), ListOptions{})
	assert.ErrorContains(t, err, "count runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(3)

	for i := 0; i < 4; i++ {
		run := sampleRun()
		run.ID = uuid.Nil
		run.RequestHash = fmt.Sprintf("h%d", i)
		if i%2 == 1 {
			run.Mode = "waste"
		}
		require.NoError(t, repo.Save(ctx, run))
	}

	runs, total, err := repo.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total, "oldest run evicted")
	require.Len(t, runs, 3)
	assert.Equal(t, "h3", runs[0].RequestHash)

	waste, total, err := repo.List(ctx, ListOptions{Modes: []string{"waste"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "h3", waste[0].RequestHash)

	page, _, err := repo.List(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "h2", page[0].RequestHash)

	got, err := repo.Get(ctx, runs[0].ID)
	require.NoError(t, err)
	got.Result[0] = 'X'
	again, _ := repo.Get(ctx, runs[0].ID)
	assert.Equal(t, byte('{'), again.Result[0], "stored copy is isolated")

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestParseID(t *testing.T) {
	_, err := ParseID("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	id := uuid.New()
	got, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got)
}
