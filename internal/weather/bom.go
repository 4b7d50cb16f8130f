package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BOM is the Australian Bureau of Meteorology provider. Its public API keys
// locations by 6-character geohash rather than raw coordinates.
type BOM struct {
	baseURL   string
	client    *http.Client
	modelElev float64 // nominal model elevation the 3-hourly temps refer to
}

func NewBOM(baseURL string, timeout time.Duration, modelElev float64) *BOM {
	return &BOM{
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		modelElev: modelElev,
	}
}

func (p *BOM) Key() string { return "bom" }

func (p *BOM) FetchForecast(ctx context.Context, lat, lon float64, horizonDays int) (RawForecast, error) {
	gh := encodeGeohash(lat, lon, 6)
	body, err := getJSON(ctx, p.client, p.Key(), fmt.Sprintf("%s/locations/%s/forecasts/3-hourly", p.baseURL, gh))
	if err != nil {
		return RawForecast{}, err
	}

	var resp struct {
		Data []struct {
			Time string  `json:"time"`
			Temp float64 `json:"temp"`
			Rain struct {
				Chance float64 `json:"chance"`
				Amount struct {
					Min float64 `json:"min"`
					Max float64 `json:"max"`
				} `json:"amount"`
			} `json:"rain"`
			Wind struct {
				SpeedKilometre     float64 `json:"speed_kilometre"`
				GustSpeedKilometre float64 `json:"gust_speed_kilometre"`
			} `json:"wind"`
			CloudCoverPercent float64 `json:"cloud_cover_percent"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: err}
	}

	raw := RawForecast{Provider: p.Key(), ModelElevation: p.modelElev, FetchedAt: time.Now().UTC()}
	limit := time.Now().UTC().Add(time.Duration(horizonDays) * 24 * time.Hour)
	for _, d := range resp.Data {
		at, err := time.Parse(time.RFC3339, d.Time)
		if err != nil {
			continue
		}
		at = at.UTC()
		if at.After(limit) {
			break
		}
		w := Window{
			At:          at,
			TempMinC:    d.Temp,
			TempMaxC:    d.Temp,
			RainProbPct: d.Rain.Chance,
			RainMM:      d.Rain.Amount.Max,
			WindMinKmh:  d.Wind.SpeedKilometre,
			WindMaxKmh:  d.Wind.SpeedKilometre,
			CloudPct:    d.CloudCoverPercent,
		}
		if d.Wind.GustSpeedKilometre > w.WindMaxKmh {
			w.WindMaxKmh = d.Wind.GustSpeedKilometre
		}
		// BOM's 3-hourly product omits freezing level and cloud base;
		// approximate with the standard lapse rate from the same nominal
		// model elevation the temperature refers to.
		w.FreezingLevelM = p.modelElev + d.Temp/0.0065
		w.CloudBaseM = p.modelElev + (100-w.CloudPct)*30
		raw.Windows = append(raw.Windows, w)
	}
	if len(raw.Windows) == 0 {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: fmt.Errorf("empty 3-hourly series")}
	}
	return raw, nil
}

func (p *BOM) FetchWarnings(ctx context.Context, lat, lon float64) ([]Warning, error) {
	gh := encodeGeohash(lat, lon, 6)
	body, err := getJSON(ctx, p.client, p.Key(), fmt.Sprintf("%s/locations/%s/warnings", p.baseURL, gh))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []struct {
			Title            string `json:"title"`
			WarningGroupType string `json:"warning_group_type"`
			IssueTime        string `json:"issue_time"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Provider: p.Key(), Err: err}
	}

	var warnings []Warning
	for _, d := range resp.Data {
		if !strings.EqualFold(d.WarningGroupType, "major") {
			continue
		}
		issued, _ := time.Parse(time.RFC3339, d.IssueTime)
		warnings = append(warnings, Warning{
			Provider: p.Key(),
			Headline: d.Title,
			Severity: "severe",
			Issued:   issued.UTC(),
		})
	}
	return warnings, nil
}

const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// encodeGeohash produces a standard geohash of the given precision.
func encodeGeohash(lat, lon float64, precision int) string {
	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}

	var sb strings.Builder
	even := true
	bit, idx := 0, 0
	for sb.Len() < precision {
		if even {
			mid := (lonRange[0] + lonRange[1]) / 2
			if lon >= mid {
				idx = idx*2 + 1
				lonRange[0] = mid
			} else {
				idx = idx * 2
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				idx = idx*2 + 1
				latRange[0] = mid
			} else {
				idx = idx * 2
				latRange[1] = mid
			}
		}
		even = !even
		bit++
		if bit == 5 {
			sb.WriteByte(geohashBase32[idx])
			bit, idx = 0, 0
		}
	}
	return sb.String()
}
