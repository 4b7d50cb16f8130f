package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"thunderbird/internal/observability"
	"thunderbird/internal/zone"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts calls and fails a configurable number of times before
// succeeding.
type fakeProvider struct {
	key      string
	calls    int
	failures int
}

func (f *fakeProvider) Key() string { return f.key }

func (f *fakeProvider) FetchForecast(ctx context.Context, lat, lon float64, horizonDays int) (RawForecast, error) {
	f.calls++
	if f.calls <= f.failures {
		return RawForecast{}, &ProviderError{Provider: f.key, Status: 503, Err: errors.New("upstream unavailable")}
	}
	return RawForecast{
		Provider: f.key,
		Windows:  []Window{{At: time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC), TempMinC: 5, TempMaxC: 5}},
	}, nil
}

func (f *fakeProvider) FetchWarnings(ctx context.Context, lat, lon float64) ([]Warning, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &ProviderError{Provider: f.key, Err: errors.New("upstream unavailable")}
	}
	return []Warning{{Provider: f.key, Headline: "Severe Weather Warning", Severity: "Severe"}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, providers []Provider) (*Router, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewForecastCache(client, 30*time.Minute)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 6, 15, 0, 0, time.UTC))
	return NewRouter(providers, "openmeteo", cache, clock, observability.NewMetricsForTesting(), testLogger()), mr
}

func TestFetchForecastCachesPerBucket(t *testing.T) {
	bom := &fakeProvider{key: "bom"}
	r, _ := newTestRouter(t, []Provider{bom, &fakeProvider{key: "openmeteo"}})

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	ctx := context.Background()

	first, err := r.FetchForecast(ctx, z, -42.68, 146.58, 1)
	require.NoError(t, err)
	second, err := r.FetchForecast(ctx, z, -42.68, 146.58, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, bom.calls, "second fetch in the same hour bucket must hit the cache")
	assert.Equal(t, first.Provider, second.Provider)
	assert.Equal(t, len(first.Windows), len(second.Windows))
}

func TestFetchForecastDistinctHorizonsDistinctKeys(t *testing.T) {
	bom := &fakeProvider{key: "bom"}
	r, _ := newTestRouter(t, []Provider{bom, &fakeProvider{key: "openmeteo"}})

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	ctx := context.Background()

	_, err := r.FetchForecast(ctx, z, -42.68, 146.58, 1)
	require.NoError(t, err)
	_, err = r.FetchForecast(ctx, z, -42.68, 146.58, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, bom.calls, "different horizons must not share a cache entry")
}

func TestFetchForecastRetriesThenFallsBack(t *testing.T) {
	bom := &fakeProvider{key: "bom", failures: 10}
	fallback := &fakeProvider{key: "openmeteo"}
	r, _ := newTestRouter(t, []Provider{bom, fallback})

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	raw, err := r.FetchForecast(context.Background(), z, -42.68, 146.58, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, bom.calls, "primary gets exactly one retry")
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "openmeteo", raw.Provider)
}

func TestFetchForecastAllProvidersDown(t *testing.T) {
	bom := &fakeProvider{key: "bom", failures: 10}
	fallback := &fakeProvider{key: "openmeteo", failures: 10}
	r, _ := newTestRouter(t, []Provider{bom, fallback})

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	_, err := r.FetchForecast(context.Background(), z, -42.68, 146.58, 1)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestFetchForecastUnknownProviderUsesFallback(t *testing.T) {
	fallback := &fakeProvider{key: "openmeteo"}
	r, _ := newTestRouter(t, []Provider{fallback})

	z := zone.Zone{ID: "zone-eu", Country: "FR", ProviderKey: "openmeteo"}
	raw, err := r.FetchForecast(context.Background(), z, 45.92, 6.87, 1)
	require.NoError(t, err)
	assert.Equal(t, "openmeteo", raw.Provider)
}

func TestFetchWarningsFallsBack(t *testing.T) {
	bom := &fakeProvider{key: "bom", failures: 10}
	fallback := &fakeProvider{key: "openmeteo"}
	r, _ := newTestRouter(t, []Provider{bom, fallback})

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	warnings, err := r.FetchWarnings(context.Background(), z, -42.68, 146.58)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "openmeteo", warnings[0].Provider)
}

func TestCacheSurvivesRouterRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewForecastCache(client, 30*time.Minute)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 6, 15, 0, 0, time.UTC))

	bom := &fakeProvider{key: "bom"}
	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}

	r1 := NewRouter([]Provider{bom}, "openmeteo", cache, clock, observability.NewMetricsForTesting(), testLogger())
	_, err := r1.FetchForecast(context.Background(), z, -42.68, 146.58, 1)
	require.NoError(t, err)

	r2 := NewRouter([]Provider{bom}, "openmeteo", cache, clock, observability.NewMetricsForTesting(), testLogger())
	_, err = r2.FetchForecast(context.Background(), z, -42.68, 146.58, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, bom.calls, "cache is shared state, not per-router")
}

func TestNilRedisDegradesToFetchEveryTime(t *testing.T) {
	bom := &fakeProvider{key: "bom"}
	cache := NewForecastCache(nil, 30*time.Minute)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 6, 15, 0, 0, time.UTC))
	r := NewRouter([]Provider{bom}, "openmeteo", cache, clock, observability.NewMetricsForTesting(), testLogger())

	z := zone.Zone{ID: "zone-a", Country: "AU", ProviderKey: "bom"}
	_, err := r.FetchForecast(context.Background(), z, -42.68, 146.58, 1)
	require.NoError(t, err)
	_, err = r.FetchForecast(context.Background(), z, -42.68, 146.58, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, bom.calls)
}
