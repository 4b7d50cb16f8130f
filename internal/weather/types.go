package weather

import (
	"context"
	"fmt"
	"time"
)

// Window is one forecast slice, hourly or 3-hourly depending on provider.
// Values are metric; unit conversion happens at format time, never here.
type Window struct {
	At             time.Time `json:"at"`
	TempMinC       float64   `json:"temp_min_c"`
	TempMaxC       float64   `json:"temp_max_c"`
	RainProbPct    float64   `json:"rain_prob_pct"`
	RainMM         float64   `json:"rain_mm"`
	WindMinKmh     float64   `json:"wind_min_kmh"`
	WindMaxKmh     float64   `json:"wind_max_kmh"`
	CloudPct       float64   `json:"cloud_pct"`
	CloudBaseM     float64   `json:"cloud_base_m"`
	FreezingLevelM float64   `json:"freezing_level_m"`
}

// RawForecast is a provider response normalized to windows in ascending
// time order. ModelElevation is the terrain height the provider's model
// assumed; zero means the provider did not report one.
type RawForecast struct {
	Provider       string    `json:"provider"`
	ModelElevation float64   `json:"model_elevation_m"`
	FetchedAt      time.Time `json:"fetched_at"`
	Windows        []Window  `json:"windows"`
}

// Warning is a severe-weather warning covering a coordinate. Zone is
// filled by the poller before the warning enters the alert hub.
type Warning struct {
	Zone     string    `json:"zone,omitempty"`
	Provider string    `json:"provider"`
	Headline string    `json:"headline"`
	Severity string    `json:"severity"`
	Issued   time.Time `json:"issued"`
}

// Provider is a single weather data source.
type Provider interface {
	Key() string
	FetchForecast(ctx context.Context, lat, lon float64, horizonDays int) (RawForecast, error)
	FetchWarnings(ctx context.Context, lat, lon float64) ([]Warning, error)
}

// ProviderError wraps an upstream failure (timeout, non-2xx, bad payload).
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
