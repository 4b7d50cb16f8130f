package db

import (
	"context"
	"log/slog"
	"time"

	"thunderbird/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres opens the route-store pool and verifies it with a ping so
// a bad URL fails at startup, not on the first inbound SMS.
func ConnectPostgres(cfg config.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres connected")
	return pool, nil
}
