package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NWS is the United States national provider (api.weather.gov). The points
// endpoint resolves a coordinate to a gridpoint whose hourly forecast URL is
// then fetched.
type NWS struct {
	baseURL string
	client  *http.Client
}

func NewNWS(baseURL string, timeout time.Duration) *NWS {
	return &NWS{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *NWS) Key() string { return "nws" }

func (p *NWS) FetchForecast(ctx context.Context, lat, lon float64, horizonDays int) (RawForecast, error) {
	body, err := getJSON(ctx, p.client, p.Key(), fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, lat, lon))
	if err != nil {
		return RawForecast{}, err
	}

	var points struct {
		Properties struct {
			ForecastHourly string `json:"forecastHourly"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &points); err != nil || points.Properties.ForecastHourly == "" {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: fmt.Errorf("points lookup: %v", err)}
	}

	body, err = getJSON(ctx, p.client, p.Key(), points.Properties.ForecastHourly)
	if err != nil {
		return RawForecast{}, err
	}

	var hourly struct {
		Properties struct {
			Elevation struct {
				Value float64 `json:"value"`
			} `json:"elevation"`
			Periods []struct {
				StartTime                  string  `json:"startTime"`
				Temperature                float64 `json:"temperature"`
				TemperatureUnit            string  `json:"temperatureUnit"`
				WindSpeed                  string  `json:"windSpeed"`
				ProbabilityOfPrecipitation struct {
					Value float64 `json:"value"`
				} `json:"probabilityOfPrecipitation"`
				ShortForecast string `json:"shortForecast"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &hourly); err != nil {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: err}
	}

	raw := RawForecast{
		Provider:       p.Key(),
		ModelElevation: hourly.Properties.Elevation.Value,
		FetchedAt:      time.Now().UTC(),
	}
	limit := time.Now().UTC().Add(time.Duration(horizonDays) * 24 * time.Hour)
	for _, period := range hourly.Properties.Periods {
		at, err := time.Parse(time.RFC3339, period.StartTime)
		if err != nil {
			continue
		}
		at = at.UTC()
		if at.After(limit) {
			break
		}

		tempC := period.Temperature
		if period.TemperatureUnit == "F" {
			tempC = (period.Temperature - 32) * 5 / 9
		}
		windMin, windMax := parseWindMph(period.WindSpeed)

		w := Window{
			At:          at,
			TempMinC:    tempC,
			TempMaxC:    tempC,
			RainProbPct: period.ProbabilityOfPrecipitation.Value,
			RainMM:      popToAmountMM(period.ProbabilityOfPrecipitation.Value),
			WindMinKmh:  windMin * 1.60934,
			WindMaxKmh:  windMax * 1.60934,
			CloudPct:    cloudPctFromText(period.ShortForecast),
		}
		// The hourly product carries neither freezing level nor cloud base;
		// approximate both from the gridpoint elevation with the standard
		// lapse rate.
		w.FreezingLevelM = raw.ModelElevation + tempC/0.0065
		w.CloudBaseM = raw.ModelElevation + (100-w.CloudPct)*30
		raw.Windows = append(raw.Windows, w)
	}
	if len(raw.Windows) == 0 {
		return RawForecast{}, &ProviderError{Provider: p.Key(), Err: fmt.Errorf("empty period series")}
	}
	return raw, nil
}

func (p *NWS) FetchWarnings(ctx context.Context, lat, lon float64) ([]Warning, error) {
	body, err := getJSON(ctx, p.client, p.Key(), fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", p.baseURL, lat, lon))
	if err != nil {
		return nil, err
	}

	var alerts struct {
		Features []struct {
			Properties struct {
				Headline string `json:"headline"`
				Severity string `json:"severity"`
				Sent     string `json:"sent"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &alerts); err != nil {
		return nil, &ProviderError{Provider: p.Key(), Err: err}
	}

	var warnings []Warning
	for _, f := range alerts.Features {
		if f.Properties.Severity != "Severe" && f.Properties.Severity != "Extreme" {
			continue
		}
		issued, _ := time.Parse(time.RFC3339, f.Properties.Sent)
		warnings = append(warnings, Warning{
			Provider: p.Key(),
			Headline: f.Properties.Headline,
			Severity: f.Properties.Severity,
			Issued:   issued.UTC(),
		})
	}
	return warnings, nil
}

var windRangeRe = regexp.MustCompile(`(\d+)(?:\s+to\s+(\d+))?\s*mph`)

// parseWindMph parses NWS wind strings like "10 mph" or "10 to 20 mph".
func parseWindMph(s string) (min, max float64) {
	m := windRangeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0
	}
	min, _ = strconv.ParseFloat(m[1], 64)
	max = min
	if m[2] != "" {
		max, _ = strconv.ParseFloat(m[2], 64)
	}
	return min, max
}

// popToAmountMM maps probability of precipitation to a nominal hourly
// amount, since the hourly product has no quantitative precipitation.
func popToAmountMM(pop float64) float64 {
	switch {
	case pop >= 80:
		return 4
	case pop >= 50:
		return 2
	case pop >= 30:
		return 0.5
	default:
		return 0
	}
}

func cloudPctFromText(short string) float64 {
	s := strings.ToLower(short)
	switch {
	case strings.Contains(s, "mostly cloudy"):
		return 75
	case strings.Contains(s, "mostly sunny"), strings.Contains(s, "mostly clear"):
		return 25
	case strings.Contains(s, "partly"):
		return 50
	case strings.Contains(s, "cloudy"), strings.Contains(s, "overcast"), strings.Contains(s, "fog"),
		strings.Contains(s, "rain"), strings.Contains(s, "snow"), strings.Contains(s, "shower"),
		strings.Contains(s, "storm"):
		return 95
	case strings.Contains(s, "sunny"), strings.Contains(s, "clear"):
		return 10
	default:
		return 50
	}
}
