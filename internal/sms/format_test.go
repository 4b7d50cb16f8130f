package sms

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"thunderbird/internal/forecast"
	"thunderbird/internal/weather"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAssembled(records int) forecast.Assembled {
	a := forecast.Assembled{
		WaypointCode: "LAKEO",
		WaypointName: "Lake Oberon",
		Provider:     "bom",
	}
	start := time.Date(2026, 2, 2, 6, 0, 0, 0, time.UTC) // a Monday
	for i := 0; i < records; i++ {
		a.Records = append(a.Records, forecast.Record{
			Window: weather.Window{
				At:             start.Add(time.Duration(i) * 3 * time.Hour),
				TempMinC:       4,
				TempMaxC:       9,
				RainProbPct:    80,
				RainMM:         4,
				WindMinKmh:     20,
				WindMaxKmh:     45,
				CloudPct:       90,
				CloudBaseM:     800,
				FreezingLevelM: 1500,
			},
			Rating: forecast.D3,
			Alert:  true,
		})
	}
	return a
}

func TestFormatForecastVocabulary(t *testing.T) {
	f := NewFormatter(160, 6)

	segments, err := f.FormatForecast(sampleAssembled(1), UnitsMetric)
	require.NoError(t, err)
	require.Len(t, segments, 1)

	lines := strings.Split(segments[0], "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "LAKEO Lake Oberon [BOM]", lines[0])
	assert.Equal(t, "Mo06 4/9C r80%4mm w20-45 c90% cb8 fz15 !D3", lines[1])
}

func TestHeaderTruncatesLongNameOnRunes(t *testing.T) {
	f := NewFormatter(160, 6)
	a := sampleAssembled(1)
	a.WaypointName = "Jökulsárlón Glacier Lagoon"

	segments, err := f.FormatForecast(a, UnitsMetric)
	require.NoError(t, err)

	header := strings.Split(segments[0], "\n")[0]
	assert.Equal(t, "LAKEO Jökulsárlón Glacier  [BOM]", header)
	assert.True(t, utf8.ValidString(header), "truncation must not split a rune")
}

func TestFormatForecastDeterministic(t *testing.T) {
	f := NewFormatter(160, 6)
	a := sampleAssembled(8)

	first, err := f.FormatForecast(a, UnitsMetric)
	require.NoError(t, err)
	second, err := f.FormatForecast(a, UnitsMetric)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical input must render byte-for-byte identically")
}

func TestSegmentationNeverSplitsFields(t *testing.T) {
	f := NewFormatter(160, 6)
	a := sampleAssembled(10)

	segments, err := f.FormatForecast(a, UnitsMetric)
	require.NoError(t, err)
	require.Greater(t, len(segments), 1, "10 records should not fit one segment")

	// Re-join and re-split: every original line must survive intact.
	var lines []string
	for _, seg := range segments {
		assert.LessOrEqual(t, len(seg), 160)
		lines = append(lines, strings.Split(seg, "\n")...)
	}
	require.Len(t, lines, 11)
	for _, line := range lines[1:] {
		assert.Regexp(t, `^(Mo|Tu|We|Th|Fr|Sa|Su)\d{2} `, line, "field line split across segments")
	}
}

func TestFormatForecastImperial(t *testing.T) {
	f := NewFormatter(160, 6)

	segments, err := f.FormatForecast(sampleAssembled(1), UnitsImperial)
	require.NoError(t, err)

	line := strings.Split(segments[0], "\n")[1]
	// 4-9 C -> 39-48 F, 20-45 km/h -> 12-28 mph, 4 mm -> 0.2 in,
	// cloud base 800 m -> 2625 ft -> cb26, freezing 1500 m -> fz49.
	assert.Equal(t, "Mo06 39/48F r80%0.2in w12-28 c90% cb26 fz49 !D3", line)
}

func TestFormatOverflow(t *testing.T) {
	tiny := NewFormatter(20, 2)
	_, err := tiny.FormatForecast(sampleAssembled(1), UnitsMetric)
	assert.ErrorIs(t, err, ErrOverflow, "a field longer than one segment cannot be absorbed")

	small := NewFormatter(160, 1)
	_, err = small.FormatForecast(sampleAssembled(10), UnitsMetric)
	assert.ErrorIs(t, err, ErrOverflow, "more segments than the gateway allows")
}

func TestReplySegmentsShortText(t *testing.T) {
	f := NewFormatter(160, 6)
	segments, err := f.Reply(HelpText)
	require.NoError(t, err)
	for _, seg := range segments {
		assert.LessOrEqual(t, len(seg), 160)
	}
}
