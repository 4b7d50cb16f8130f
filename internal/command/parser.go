package command

import (
	"regexp"
	"strconv"
	"strings"

	"thunderbird/internal/forecast"
	"thunderbird/internal/sms"
)

// Command is the closed set of things an inbound SMS can mean. The
// dispatcher switches over it exhaustively; adding a command is a
// compile-time-visible addition here, not a new string branch.
type Command interface {
	isCommand()
}

type CastRequest struct {
	Horizon      forecast.Horizon
	Lat, Lon     float64
	HasCoords    bool
	WaypointCode string // set when the hiker named a waypoint instead of coords
}

type Delay struct{}

type Done struct{}

type SetUnits struct {
	System string // sms.UnitsMetric or sms.UnitsImperial
}

type Checkin struct {
	WaypointCode string
}

type Help struct{}

type Unknown struct {
	Raw string
}

func (CastRequest) isCommand() {}
func (Delay) isCommand()       {}
func (Done) isCommand()        {}
func (SetUnits) isCommand()    {}
func (Checkin) isCommand()     {}
func (Help) isCommand()        {}
func (Unknown) isCommand()     {}

var (
	codeRe   = regexp.MustCompile(`^[A-Z0-9]{5}$`)
	coordsRe = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)$`)
)

// IsWaypointCode reports whether s is a well-formed 5-character code.
func IsWaypointCode(s string) bool {
	return codeRe.MatchString(s)
}

// Parse classifies raw inbound text. Total: every input maps to exactly one
// Command, never an error. knownCodes are the sender's active route
// waypoint codes; a bare exact match is a check-in and takes priority over
// everything else.
func Parse(raw string, knownCodes []string) Command {
	text := strings.ToUpper(strings.TrimSpace(raw))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Unknown{Raw: raw}
	}

	if IsWaypointCode(text) {
		for _, code := range knownCodes {
			if text == code {
				return Checkin{WaypointCode: text}
			}
		}
	}

	keyword, rest, _ := strings.Cut(text, " ")
	switch keyword {
	case "CAST", "CAST7", "CAST12":
		return parseCast(keyword, rest, raw)
	case "DELAY":
		return Delay{}
	case "DONE":
		return Done{}
	case "UNITS":
		switch rest {
		case "METRIC":
			return SetUnits{System: sms.UnitsMetric}
		case "IMPERIAL":
			return SetUnits{System: sms.UnitsImperial}
		}
		return Unknown{Raw: raw}
	case "HELP":
		return Help{}
	}
	return Unknown{Raw: raw}
}

func parseCast(keyword, rest, raw string) Command {
	req := CastRequest{Horizon: forecast.Horizon24h}
	switch keyword {
	case "CAST7":
		req.Horizon = forecast.Horizon7d
	case "CAST12":
		req.Horizon = forecast.Horizon12h
	}

	if rest == "" {
		return req
	}
	if m := coordsRe.FindStringSubmatch(rest); m != nil {
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			req.Lat, req.Lon = lat, lon
			req.HasCoords = true
			return req
		}
		return Unknown{Raw: raw}
	}
	if IsWaypointCode(rest) {
		req.WaypointCode = rest
		return req
	}
	return Unknown{Raw: raw}
}
