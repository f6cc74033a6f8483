package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsTable is the goose bookkeeping table used by [Migrate].
const MigrationsTable = "two_factor_schema_migrations"

var ErrFailedToApplyMigrations = errors.New("failed to apply migrations")

// Migrate applies the embedded schema migrations. goose needs database/sql,
// so the pool is bridged through pgx's stdlib adapter.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("close migration db handle", zap.Error(err))
		}
	}()

	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(MigrationsTable)
	goose.SetLogger(gooseLogger{log: log.Sugar()})

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}
	return nil
}

type gooseLogger struct {
	log *zap.SugaredLogger
}

// Fatalf is logged at error level; goose callers already return the error.
func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
