// Package migrations встраивает SQL миграции в бинарник.
package migrations

import "embed"

// PostgresMigrations миграции PostgreSQL, каталог "postgres"
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
