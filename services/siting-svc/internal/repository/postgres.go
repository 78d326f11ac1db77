package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"siting/pkg/database"
)

// PostgresRepository реализация хранилища на PostgreSQL
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository создаёт новый репозиторий
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const runColumns = `
	id, mode, request_hash,
	min_lat, min_lon, max_lat, max_lon,
	max_facilities, selected_sites,
	coverage_before, coverage_after, reason,
	seed, computation_ms, result, created_at`

// Save сохраняет прогон
func (r *PostgresRepository) Save(ctx context.Context, run *Run) error {
	prepare(run)

	query := `
		INSERT INTO optimization_runs (` + runColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.Mode, run.RequestHash,
		run.BoundingBox.MinLat, run.BoundingBox.MinLon, run.BoundingBox.MaxLat, run.BoundingBox.MaxLon,
		run.MaxFacilities, run.SelectedSites,
		run.CoverageBefore, run.CoverageAfter, run.Reason,
		run.Seed, run.ComputationMs, run.Result, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get возвращает прогон по ID
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM optimization_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List возвращает прогоны от новых к старым
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]*Run, int64, error) {
	opts.normalize()

	conditions := []string{"TRUE"}
	var args []any
	if len(opts.Modes) > 0 {
		args = append(args, pq.Array(opts.Modes))
		conditions = append(conditions, fmt.Sprintf("mode = ANY($%d)", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	args = append(args, opts.Limit, opts.Offset)
	page := fmt.Sprintf(`SELECT %s FROM optimization_runs WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		runColumns, where, len(args)-1, len(args))

	var (
		total int64
		runs  []*Run
	)
	err := database.ReadSnapshot(ctx, r.db, func(tx pgx.Tx) error {
		filter := args[:len(args)-2]
		if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM optimization_runs WHERE "+where, filter...).Scan(&total); err != nil {
			return fmt.Errorf("count runs: %w", err)
		}

		rows, err := tx.Query(ctx, page, args...)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return fmt.Errorf("scan run: %w", err)
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// Ping проверяет соединение
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close закрывает соединения
func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.Mode, &run.RequestHash,
		&run.BoundingBox.MinLat, &run.BoundingBox.MinLon, &run.BoundingBox.MaxLat, &run.BoundingBox.MaxLon,
		&run.MaxFacilities, &run.SelectedSites,
		&run.CoverageBefore, &run.CoverageAfter, &run.Reason,
		&run.Seed, &run.ComputationMs, &run.Result, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
