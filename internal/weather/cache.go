package weather

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// ForecastCache stores raw forecasts in redis keyed by
// (zone, horizon, hour bucket) with a fixed TTL, so waypoints and users
// sharing a zone share one upstream fetch. A nil client degrades to a
// cache that always misses.
type ForecastCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewForecastCache(client *redis.Client, ttl time.Duration) *ForecastCache {
	return &ForecastCache{redis: client, ttl: ttl}
}

func (c *ForecastCache) Get(ctx context.Context, key string) (RawForecast, bool) {
	if c.redis == nil {
		return RawForecast{}, false
	}
	payload, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return RawForecast{}, false
	}
	var raw RawForecast
	if err := json.Unmarshal(payload, &raw); err != nil {
		return RawForecast{}, false
	}
	return raw, true
}

func (c *ForecastCache) Set(ctx context.Context, key string, raw RawForecast) {
	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return
	}
	c.redis.Set(ctx, key, payload, c.ttl)
}
