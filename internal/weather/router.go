package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"thunderbird/internal/observability"
	"thunderbird/internal/zone"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// bucketSize rounds fetch times so that requests within the same hour share
// a cache key.
const bucketSize = time.Hour

// Router selects a provider for a zone, fetches with retry and fallback,
// and serves repeated fetches for the same (zone, horizon, hour bucket)
// from the cache. Concurrent fetches for one cache key are coalesced into a
// single upstream call.
type Router struct {
	providers map[string]Provider
	fallback  string
	cache     *ForecastCache
	group     singleflight.Group
	clock     clockwork.Clock
	metrics   *observability.Metrics
	log       *slog.Logger
}

func NewRouter(providers []Provider, fallbackKey string, cache *ForecastCache, clock clockwork.Clock, metrics *observability.Metrics, log *slog.Logger) *Router {
	byKey := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byKey[p.Key()] = p
	}
	return &Router{
		providers: byKey,
		fallback:  fallbackKey,
		cache:     cache,
		clock:     clock,
		metrics:   metrics,
		log:       log.With("component", "weather-router"),
	}
}

// FetchForecast returns the forecast for a zone. Policy: primary provider
// for the zone's country, one retry on failure, then the global fallback,
// then ProviderError up the chain.
func (r *Router) FetchForecast(ctx context.Context, z zone.Zone, lat, lon float64, horizonDays int) (RawForecast, error) {
	key := r.cacheKey(z, horizonDays)
	if raw, ok := r.cache.Get(ctx, key); ok {
		r.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return raw, nil
	}
	r.metrics.CacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := r.group.Do(key, func() (any, error) {
		raw, err := r.fetchWithFallback(ctx, z.ProviderKey, lat, lon, horizonDays)
		if err != nil {
			return nil, err
		}
		r.cache.Set(ctx, key, raw)
		return raw, nil
	})
	if err != nil {
		return RawForecast{}, err
	}
	return v.(RawForecast), nil
}

// FetchWarnings polls the zone's provider for active severe-weather
// warnings, falling back to the global provider on failure.
func (r *Router) FetchWarnings(ctx context.Context, z zone.Zone, lat, lon float64) ([]Warning, error) {
	if p, ok := r.providers[z.ProviderKey]; ok {
		warnings, err := p.FetchWarnings(ctx, lat, lon)
		if err == nil {
			return warnings, nil
		}
		r.log.Warn("warning poll failed, using fallback", "provider", p.Key(), "error", err)
	}
	fb, ok := r.providers[r.fallback]
	if !ok {
		return nil, &ProviderError{Provider: r.fallback, Err: fmt.Errorf("fallback provider not configured")}
	}
	return fb.FetchWarnings(ctx, lat, lon)
}

func (r *Router) fetchWithFallback(ctx context.Context, primaryKey string, lat, lon float64, horizonDays int) (RawForecast, error) {
	if p, ok := r.providers[primaryKey]; ok {
		raw, err := r.fetchWithRetry(ctx, p, lat, lon, horizonDays)
		if err == nil {
			r.metrics.ProviderRequests.WithLabelValues(p.Key(), "success").Inc()
			return raw, nil
		}
		r.metrics.ProviderRequests.WithLabelValues(p.Key(), "error").Inc()
		r.log.Warn("primary provider failed", "provider", p.Key(), "error", err)
	}

	fb, ok := r.providers[r.fallback]
	if !ok || primaryKey == r.fallback {
		return RawForecast{}, &ProviderError{Provider: primaryKey, Err: fmt.Errorf("no fallback available")}
	}
	raw, err := r.fetchWithRetry(ctx, fb, lat, lon, horizonDays)
	if err != nil {
		r.metrics.ProviderRequests.WithLabelValues(fb.Key(), "error").Inc()
		return RawForecast{}, err
	}
	r.metrics.ProviderRequests.WithLabelValues(fb.Key(), "fallback").Inc()
	return raw, nil
}

func (r *Router) fetchWithRetry(ctx context.Context, p Provider, lat, lon float64, horizonDays int) (RawForecast, error) {
	raw, err := p.FetchForecast(ctx, lat, lon, horizonDays)
	if err == nil {
		return raw, nil
	}
	if ctx.Err() != nil {
		return RawForecast{}, err
	}
	return p.FetchForecast(ctx, lat, lon, horizonDays)
}

func (r *Router) cacheKey(z zone.Zone, horizonDays int) string {
	bucket := r.clock.Now().UTC().Truncate(bucketSize).Unix()
	return fmt.Sprintf("wx:%s:%d:%d", z.ID, horizonDays, bucket)
}
