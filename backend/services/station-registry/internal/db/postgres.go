package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	libdb "evregistry/backend/libs/db"
	"evregistry/backend/services/station-registry/internal/db/migrations"
)

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// NewPostgres connects to Postgres, retrying with a fixed delay until ctx is done.
func NewPostgres(ctx context.Context, dsn string, delay time.Duration, logger *zap.Logger) (*sql.DB, error) {
	return libdb.ConnectWithRetry(ctx, dsn, delay, func(attempt int, err error) {
		logger.Warn("postgres connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUp(ctx, db, ".")
}
