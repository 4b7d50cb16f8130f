package forecast

import (
	"testing"
	"time"

	"thunderbird/internal/weather"

	"github.com/stretchr/testify/assert"
)

func TestAdjustElevationLapseRate(t *testing.T) {
	// Lake Oberon: waypoint 863 m, model terrain 700 m, raw 8.0 C.
	raw := weather.RawForecast{
		Provider:       "bom",
		ModelElevation: 700,
		Windows: []weather.Window{
			{At: time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC), TempMinC: 8, TempMaxC: 8, RainMM: 2, WindMaxKmh: 30},
		},
	}

	adjusted := AdjustElevation(raw, 863, 500)

	assert.InDelta(t, 6.94, adjusted.Windows[0].TempMinC, 0.01)
	assert.InDelta(t, 6.94, adjusted.Windows[0].TempMaxC, 0.01)
	// Everything except temperature passes through untouched.
	assert.Equal(t, 2.0, adjusted.Windows[0].RainMM)
	assert.Equal(t, 30.0, adjusted.Windows[0].WindMaxKmh)
}

func TestAdjustElevationDefaultsModelElevation(t *testing.T) {
	raw := weather.RawForecast{
		Provider: "bom", // BOM reports no model elevation
		Windows:  []weather.Window{{TempMinC: 5, TempMaxC: 5}},
	}

	adjusted := AdjustElevation(raw, 1500, 500)

	// delta = (1500-500)*0.0065 = 6.5
	assert.InDelta(t, -1.5, adjusted.Windows[0].TempMinC, 0.001)
}

func TestAdjustElevationDoesNotMutateInput(t *testing.T) {
	raw := weather.RawForecast{
		ModelElevation: 700,
		Windows:        []weather.Window{{TempMinC: 8, TempMaxC: 8}},
	}

	_ = AdjustElevation(raw, 863, 500)

	assert.Equal(t, 8.0, raw.Windows[0].TempMinC)
}
