package db

import (
	"log/slog"

	"thunderbird/internal/config"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis returns nil when no address is configured: the forecast cache
// and idempotency hashes then stay in-process.
func ConnectRedis(cfg config.Config, log *slog.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Info("no redis configured, cache and sent-hashes stay in-process")
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}
