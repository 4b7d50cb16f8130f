package forecast

import (
	"sort"
	"time"

	"thunderbird/internal/weather"
)

// Horizon is a forecast span in hours, matching the CAST command family.
type Horizon int

const (
	Horizon12h Horizon = 12
	Horizon24h Horizon = 24
	Horizon7d  Horizon = 168
)

// Days returns the horizon rounded up to whole days, the unit providers
// take.
func (h Horizon) Days() int {
	return (int(h) + 23) / 24
}

// Record is one assembled per-window forecast entry.
type Record struct {
	Window  weather.Window
	Factors Factors
	Rating  Rating
	Alert   bool
}

// Assembled is the ordered forecast for one waypoint, ready to format.
type Assembled struct {
	WaypointCode string
	WaypointName string
	Provider     string
	Records      []Record
}

// step returns the sampling interval for a horizon: a 7-day outlook at
// hourly resolution would never fit the segment budget, so long horizons
// thin to morning/evening slices.
func (h Horizon) step() time.Duration {
	switch {
	case h >= Horizon7d:
		return 12 * time.Hour
	case h >= Horizon24h:
		return 3 * time.Hour
	default:
		return time.Hour
	}
}

// Assemble merges elevation-adjusted windows with their danger ratings into
// a time-ordered sequence bounded to the horizon, flagging records at or
// above alertMin. Windows are sampled at the horizon's step. Idempotent for
// identical inputs.
func Assemble(raw weather.RawForecast, code, name string, waypointElev float64, waypointType string, horizon Horizon, alertMin Rating, now time.Time) Assembled {
	cutoff := now.Add(time.Duration(horizon) * time.Hour)
	step := horizon.step()

	out := Assembled{
		WaypointCode: code,
		WaypointName: name,
		Provider:     raw.Provider,
	}
	var lastKept time.Time
	for _, w := range raw.Windows {
		if w.At.Before(now.Truncate(time.Hour)) || w.At.After(cutoff) {
			continue
		}
		if !lastKept.IsZero() && w.At.Sub(lastKept) < step {
			continue
		}
		lastKept = w.At
		factors, rating := RateWindow(w, waypointElev, waypointType)
		out.Records = append(out.Records, Record{
			Window:  w,
			Factors: factors,
			Rating:  rating,
			Alert:   rating >= alertMin,
		})
	}
	sort.SliceStable(out.Records, func(i, j int) bool {
		return out.Records[i].Window.At.Before(out.Records[j].Window.At)
	})
	return out
}
