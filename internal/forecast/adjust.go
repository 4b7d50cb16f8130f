package forecast

import "thunderbird/internal/weather"

// LapseRate is the standard-atmosphere temperature lapse, degrees C per
// metre of elevation.
const LapseRate = 0.0065

// AdjustElevation corrects modeled temperatures to the waypoint's true
// elevation. Providers model a grid cell's mean terrain height, which in
// steep country can sit hundreds of metres below a camp or summit. When the
// provider reported no model elevation, defaultModelElev (the zone's nominal
// terrain height) is used. All other fields pass through unchanged.
func AdjustElevation(raw weather.RawForecast, waypointElev, defaultModelElev float64) weather.RawForecast {
	modelElev := raw.ModelElevation
	if modelElev == 0 {
		modelElev = defaultModelElev
	}
	delta := (waypointElev - modelElev) * LapseRate

	out := raw
	out.Windows = make([]weather.Window, len(raw.Windows))
	for i, w := range raw.Windows {
		w.TempMinC -= delta
		w.TempMaxC -= delta
		out.Windows[i] = w
	}
	return out
}
