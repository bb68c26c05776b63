package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
	defaultConnLifetime = time.Hour
	defaultConnIdleTime = 30 * time.Minute
	defaultPingTimeout  = 5 * time.Second
)

// RetryFunc is notified about every failed connection attempt before the next one.
type RetryFunc func(attempt int, err error)

// ConnectWithRetry keeps trying to open the pool with a fixed delay between attempts until
// it succeeds or ctx is cancelled. An empty DSN fails immediately.
func ConnectWithRetry(ctx context.Context, dsn string, delay time.Duration, onRetry RetryFunc) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		db, err := open(ctx, dsn)
		if err == nil {
			return db, nil
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if ctx.Err() != nil {
			return nil, errors.Join(ctx.Err(), err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: empty DSN")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnLifetime)
	db.SetConnMaxIdleTime(defaultConnIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
