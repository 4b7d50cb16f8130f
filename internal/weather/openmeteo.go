package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// OpenMeteo is the universal fallback provider: global model coverage, no
// API key, reports the model's terrain elevation alongside the forecast.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
}

func NewOpenMeteo(baseURL string, timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenMeteo) Key() string { return "openmeteo" }

func (p *OpenMeteo) FetchForecast(ctx context.Context, lat, lon float64, horizonDays int) (RawForecast, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("forecast_days", fmt.Sprintf("%d", horizonDays))
	q.Set("timeformat", "unixtime")
	q.Set("hourly", "temperature_2m,dew_point_2m,precipitation_probability,precipitation,cloud_cover,wind_speed_10m,wind_gusts_10m,freezing_level_height")

	body, err := getJSON(ctx, p.client, p.Key(), p.baseURL+"/forecast?"+q.Encode())
	if err != nil {
		return RawForecast{}, err
	}

	var resp struct {
		Elevation float64 `json:"elevation"`
		Hourly    struct {
			Time                     []int64   `json:"time"`
			Temperature2m            []float64 `json:"temperature_2m"`
			DewPoint2m               []float64 `json:"dew_point_2m"`
			PrecipitationProbability []float64 `json:"precipitation_probability"`
			Precipitation            []float64 `json:"precipitation"`
			CloudCover               []float64 `json:"cloud_cover"`
			WindSpeed10m             []float64 `json:"wind_speed_10m"`
			WindGusts10m             []float64 `json:"wind_gusts_10m"`
			FreezingLevelHeight      []float64 `json:"freezing_level_height"`
		} `json:"hourly"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: err}
	}

	raw := RawForecast{
		Provider:       p.Key(),
		ModelElevation: resp.Elevation,
		FetchedAt:      time.Now().UTC(),
	}
	h := resp.Hourly
	for i, ts := range h.Time {
		w := Window{At: time.Unix(ts, 0).UTC()}
		if i < len(h.Temperature2m) {
			w.TempMinC = h.Temperature2m[i]
			w.TempMaxC = h.Temperature2m[i]
		}
		if i < len(h.PrecipitationProbability) {
			w.RainProbPct = h.PrecipitationProbability[i]
		}
		if i < len(h.Precipitation) {
			w.RainMM = h.Precipitation[i]
		}
		if i < len(h.CloudCover) {
			w.CloudPct = h.CloudCover[i]
		}
		if i < len(h.WindSpeed10m) {
			w.WindMinKmh = h.WindSpeed10m[i]
			w.WindMaxKmh = h.WindSpeed10m[i]
		}
		if i < len(h.WindGusts10m) && h.WindGusts10m[i] > w.WindMaxKmh {
			w.WindMaxKmh = h.WindGusts10m[i]
		}
		if i < len(h.FreezingLevelHeight) {
			w.FreezingLevelM = h.FreezingLevelHeight[i]
		}
		// Cloud base above model terrain from the temperature/dew point
		// spread (~125 m per degree of spread).
		if i < len(h.Temperature2m) && i < len(h.DewPoint2m) {
			spread := h.Temperature2m[i] - h.DewPoint2m[i]
			if spread < 0 {
				spread = 0
			}
			w.CloudBaseM = resp.Elevation + spread*125
		}
		raw.Windows = append(raw.Windows, w)
	}
	if len(raw.Windows) == 0 {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: fmt.Errorf("empty hourly series")}
	}
	return raw, nil
}

// FetchWarnings approximates severe-weather warnings from the model: any
// window in the next 24 h with gusts over 90 km/h or 25 mm/h precipitation.
func (p *OpenMeteo) FetchWarnings(ctx context.Context, lat, lon float64) ([]Warning, error) {
	raw, err := p.FetchForecast(ctx, lat, lon, 1)
	if err != nil {
		return nil, err
	}
	var warnings []Warning
	for _, w := range raw.Windows {
		if w.WindMaxKmh >= 90 {
			warnings = append(warnings, Warning{
				Provider: p.Key(),
				Headline: fmt.Sprintf("Damaging winds to %.0fkm/h from %s", w.WindMaxKmh, w.At.Format("Mon 15:04")),
				Severity: "severe",
				Issued:   raw.FetchedAt,
			})
			break
		}
		if w.RainMM >= 25 {
			warnings = append(warnings, Warning{
				Provider: p.Key(),
				Headline: fmt.Sprintf("Heavy rain %.0fmm/h from %s", w.RainMM, w.At.Format("Mon 15:04")),
				Severity: "severe",
				Issued:   raw.FetchedAt,
			})
			break
		}
	}
	return warnings, nil
}

// getJSON performs a GET and returns the body, mapping transport errors and
// non-2xx statuses to ProviderError.
func getJSON(ctx context.Context, client *http.Client, provider, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "thunderbird-weather")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: provider, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	return body, nil
}
