package forecast

import (
	"testing"
	"time"

	"thunderbird/internal/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlySeries(start time.Time, hours int) []weather.Window {
	windows := make([]weather.Window, hours)
	for i := range windows {
		windows[i] = weather.Window{
			At:             start.Add(time.Duration(i) * time.Hour),
			TempMinC:       5,
			TempMaxC:       5,
			FreezingLevelM: 2000,
			CloudBaseM:     2000,
		}
	}
	return windows
}

func TestAssembleBoundsAndOrder(t *testing.T) {
	now := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	raw := weather.RawForecast{Provider: "openmeteo", Windows: hourlySeries(now, 72)}

	a := Assemble(raw, "LAKEO", "Lake Oberon", 863, "camp", Horizon12h, D3, now)

	require.NotEmpty(t, a.Records)
	assert.LessOrEqual(t, len(a.Records), 13)
	cutoff := now.Add(12 * time.Hour)
	for i, rec := range a.Records {
		assert.False(t, rec.Window.At.After(cutoff), "record beyond horizon")
		if i > 0 {
			assert.True(t, rec.Window.At.After(a.Records[i-1].Window.At), "records out of order")
		}
	}
}

func TestAssembleSamplesLongHorizons(t *testing.T) {
	now := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	raw := weather.RawForecast{Provider: "openmeteo", Windows: hourlySeries(now, 7*24)}

	week := Assemble(raw, "LAKEO", "Lake Oberon", 863, "camp", Horizon7d, D3, now)
	assert.LessOrEqual(t, len(week.Records), 15, "7-day outlook must thin to fit SMS")

	day := Assemble(raw, "LAKEO", "Lake Oberon", 863, "camp", Horizon24h, D3, now)
	assert.LessOrEqual(t, len(day.Records), 9)
}

func TestAssembleMarksAlerts(t *testing.T) {
	now := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	storm := weather.Window{
		At:             now.Add(2 * time.Hour),
		WindMaxKmh:     80,
		RainMM:         20,
		CloudBaseM:     500,
		FreezingLevelM: 400,
	}
	raw := weather.RawForecast{
		Provider: "bom",
		Windows:  []weather.Window{{At: now.Add(time.Hour), FreezingLevelM: 2000, CloudBaseM: 2000}, storm},
	}

	a := Assemble(raw, "FEDPK", "Federation Peak", 1224, "peak", Horizon12h, D3, now)

	require.Len(t, a.Records, 2)
	assert.False(t, a.Records[0].Alert)
	assert.True(t, a.Records[1].Alert)
	assert.Equal(t, D4, a.Records[1].Rating)
}

func TestAssembleIdempotent(t *testing.T) {
	now := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	raw := weather.RawForecast{Provider: "openmeteo", Windows: hourlySeries(now, 24)}

	a := Assemble(raw, "LAKEO", "Lake Oberon", 863, "camp", Horizon24h, D3, now)
	b := Assemble(raw, "LAKEO", "Lake Oberon", 863, "camp", Horizon24h, D3, now)
	assert.Equal(t, a, b)
}

func TestHorizonDays(t *testing.T) {
	assert.Equal(t, 1, Horizon12h.Days())
	assert.Equal(t, 1, Horizon24h.Days())
	assert.Equal(t, 7, Horizon7d.Days())
}
