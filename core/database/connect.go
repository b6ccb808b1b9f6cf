package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/logger"
)

const connectTimeout = 5 * time.Second

var pingInterval = 2 * time.Second

// Connect opens the connection pool backing the postgres persistence store
// and waits until the server answers.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	start := time.Now()
	attrs := []any{
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", portOrDefault(cfg.Port)),
		slog.String("db", cfg.Name),
	}

	db, err := sqlx.Open("postgres", DSN(cfg))
	if err == nil {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
		if err = waitReady(ctx, db, connectTimeout); err != nil {
			_ = db.Close()
		}
	}
	attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	if err != nil {
		logger.DB.Error("db connect failed", append(attrs, slog.String("event", "db.connect"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	logger.DB.Info("db connected", append(attrs, slog.String("event", "db.connect"), slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// WaitForPostgres pings the server behind dsn until it answers, the timeout
// passes or ctx ends.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return waitReady(ctx, db, timeout)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// waitReady retries db.PingContext every pingInterval within timeout.
func waitReady(ctx context.Context, db pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(pingInterval)
	defer tick.Stop()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database not ready after %s: %w", timeout, err)
		case <-tick.C:
		}
	}
}
