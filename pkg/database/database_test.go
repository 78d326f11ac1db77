package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/config"
	"siting/pkg/logger"
)

func init() {
	logger.Init("error")
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestReadSnapshot_Commit(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectCommit()

	var n int64
	err := ReadSnapshot(context.Background(), mock, func(tx pgx.Tx) error {
		return tx.QueryRow(context.Background(), `SELECT COUNT(*) FROM optimization_runs`).Scan(&n)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollbackOnError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := InTx(context.Background(), mock, func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_RollbackOnPanic(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = InTx(context.Background(), mock, func(pgx.Tx) error { panic("boom") })
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx_BeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{}).WillReturnError(errors.New("no connection"))

	called := false
	err := InTx(context.Background(), mock, func(pgx.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestInTx_CommitFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := InTx(context.Background(), mock, func(pgx.Tx) error { return nil })
	assert.ErrorContains(t, err, "serialization failure")
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{Driver: "sqlite"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSlowQueryTracer(t *testing.T) {
	now := time.Unix(0, 0)
	tr := &slowQueryTracer{threshold: 100 * time.Millisecond, now: func() time.Time { return now }}

	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	require.True(t, ok)
	assert.Equal(t, "SELECT 1", start.sql)

	now = now.Add(time.Second)
	// без паники и для медленного, и для упавшего запроса
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("SELECT 1")})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})
	tr.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
}
