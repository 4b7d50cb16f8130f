package sms

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"thunderbird/internal/forecast"
	"thunderbird/internal/weather"
)

// ErrOverflow means content cannot fit even minimally (a single field line
// longer than one segment, or more segments than the gateway allows). The
// send is skipped and logged; segmentation absorbs everything short of this.
var ErrOverflow = errors.New("sms: content cannot fit segment budget")

const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// Formatter renders assembled forecasts and replies into SMS segments under
// a hard per-segment character budget. Output is byte-for-byte
// deterministic for identical inputs; the dispatcher hashes it for
// duplicate-push suppression.
type Formatter struct {
	segmentChars int
	maxSegments  int
}

func NewFormatter(segmentChars, maxSegments int) *Formatter {
	return &Formatter{segmentChars: segmentChars, maxSegments: maxSegments}
}

// FormatForecast renders one waypoint forecast. Line vocabulary, per window:
//
//	Mo06 2C r80%4mm w20-45 c90% cb8 fz15 !D3
//
// temp (range when min!=max), rain probability and amount, wind range km/h,
// cloud cover, cloud base and freezing level in hundreds of metres, danger
// marker on windows at or above the alert threshold. Imperial units are
// converted before formatting, never after.
func (f *Formatter) FormatForecast(a forecast.Assembled, units string) ([]string, error) {
	lines := []string{f.header(a)}
	for _, rec := range a.Records {
		lines = append(lines, f.formatRecord(rec, units))
	}
	return f.pack(lines)
}

func (f *Formatter) header(a forecast.Assembled) string {
	name := a.WaypointName
	// Truncate on runes: slicing bytes could split a multibyte name mid-rune.
	if r := []rune(name); len(r) > 20 {
		name = string(r[:20])
	}
	return fmt.Sprintf("%s %s [%s]", a.WaypointCode, name, strings.ToUpper(a.Provider))
}

func (f *Formatter) formatRecord(rec forecast.Record, units string) string {
	w := rec.Window
	if units == UnitsImperial {
		w = toImperial(w)
	}

	var b strings.Builder
	b.WriteString(w.At.Format("Mon")[:2])
	fmt.Fprintf(&b, "%02d", w.At.Hour())

	if round(w.TempMinC) != round(w.TempMaxC) {
		fmt.Fprintf(&b, " %d/%d%s", round(w.TempMinC), round(w.TempMaxC), degreeUnit(units))
	} else {
		fmt.Fprintf(&b, " %d%s", round(w.TempMinC), degreeUnit(units))
	}

	fmt.Fprintf(&b, " r%d%%%s", round(w.RainProbPct), rainAmount(w.RainMM, units))

	if round(w.WindMinKmh) != round(w.WindMaxKmh) {
		fmt.Fprintf(&b, " w%d-%d", round(w.WindMinKmh), round(w.WindMaxKmh))
	} else {
		fmt.Fprintf(&b, " w%d", round(w.WindMinKmh))
	}

	fmt.Fprintf(&b, " c%d%%", round(w.CloudPct))
	fmt.Fprintf(&b, " cb%d fz%d", hundreds(w.CloudBaseM), hundreds(w.FreezingLevelM))

	if rec.Alert {
		fmt.Fprintf(&b, " !%s", rec.Rating)
	}
	return b.String()
}

// pack fills segments line by line, never splitting a line across a
// boundary.
func (f *Formatter) pack(lines []string) ([]string, error) {
	var segments []string
	var current strings.Builder

	for _, line := range lines {
		if len(line) > f.segmentChars {
			return nil, ErrOverflow
		}
		need := len(line)
		if current.Len() > 0 {
			need++ // newline separator
		}
		if current.Len()+need > f.segmentChars {
			segments = append(segments, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	if len(segments) > f.maxSegments {
		return nil, ErrOverflow
	}
	return segments, nil
}

// Reply wraps a single reply text into segments under the same budget.
func (f *Formatter) Reply(text string) ([]string, error) {
	return f.pack(strings.Split(text, "\n"))
}

func toImperial(w weather.Window) weather.Window {
	w.TempMinC = w.TempMinC*9/5 + 32
	w.TempMaxC = w.TempMaxC*9/5 + 32
	w.WindMinKmh = w.WindMinKmh / 1.60934
	w.WindMaxKmh = w.WindMaxKmh / 1.60934
	w.CloudBaseM = w.CloudBaseM * 3.28084
	w.FreezingLevelM = w.FreezingLevelM * 3.28084
	// RainMM converted at format time to inches with one decimal.
	return w
}

func degreeUnit(units string) string {
	if units == UnitsImperial {
		return "F"
	}
	return "C"
}

func rainAmount(mm float64, units string) string {
	if mm <= 0 {
		return ""
	}
	if units == UnitsImperial {
		return fmt.Sprintf("%.1fin", mm/25.4)
	}
	if mm < 1 {
		return fmt.Sprintf("%.1fmm", mm)
	}
	return fmt.Sprintf("%dmm", round(mm))
}

func round(v float64) int {
	return int(math.Round(v))
}

// hundreds reports an altitude in hundreds of units (metres or feet),
// the densest encoding that still reads unambiguously in the field.
func hundreds(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Round(v / 100))
}
