package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// snapshot read-only транзакция, в которой все запросы видят один снимок
var snapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// ReadSnapshot выполняет fn в snapshot транзакции: счётчик и страница
// списка согласованы даже при параллельных вставках
func ReadSnapshot(ctx context.Context, db DB, fn func(pgx.Tx) error) error {
	return run(ctx, db, snapshot, fn)
}

// InTx выполняет fn в транзакции по умолчанию; ошибка fn откатывает её
func InTx(ctx context.Context, db DB, fn func(pgx.Tx) error) error {
	return run(ctx, db, pgx.TxOptions{}, fn)
}

// run откатывает транзакцию только при ошибке или панике fn; успешная
// транзакция завершается одним Commit
func run(ctx context.Context, db DB, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
