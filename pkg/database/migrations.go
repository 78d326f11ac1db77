package database

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"siting/pkg/logger"
)

// Migrate применяет миграции goose из подкаталога dir встроенной fsys
// и возвращает итоговую версию схемы
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) (int64, error) {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("migrations dir %q: %w", dir, err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	p, err := goose.NewProvider(goose.DialectPostgres, sqlDB, sub)
	if err != nil {
		return 0, fmt.Errorf("migration provider: %w", err)
	}

	applied, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range applied {
		logger.Log.Info("Migration applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
	}

	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	logger.Log.Info("Schema up to date", "version", version, "applied", len(applied))
	return version, nil
}
