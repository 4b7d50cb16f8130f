package sms

import (
	"fmt"
	"time"
)

// Reply texts are part of the wire protocol between hikers and the service;
// wording changes break people's expectations mid-trip, so keep them stable.

const HelpText = "Thunderbird cmds: CAST [lat,lon|code] 24h, CAST7 7day, CAST12 12h, DELAY +1 day, DONE end trip, UNITS METRIC|IMPERIAL, or text a waypoint code to check in"

const DoneText = "Trip ended. Forecasts stopped. Stay safe out there."

const UnavailableText = "Forecast temporarily unavailable, try again shortly"

const NoRouteText = "No active trip for this number. Register a route at thunderbird.weather before heading out."

const CannotExtendText = "Could not extend trip: it has already ended."

const InvalidCoordsText = "Invalid coordinates. Use CAST <lat>,<lon>, e.g. CAST -42.68,146.58"

func DelayReply(newEnd time.Time) string {
	return fmt.Sprintf("Trip extended 1 day. New end date %s", newEnd.Format("Mon 02 Jan"))
}

func UnitsReply(units string) string {
	return fmt.Sprintf("Units set to %s", units)
}

func CheckinReply(code, name string) string {
	return fmt.Sprintf("Checked in at %s %s. SafeCheck contacts notified.", code, name)
}

func CheckinNotice(displayName, code, name string, at time.Time) string {
	return fmt.Sprintf("Thunderbird SafeCheck: %s checked in at %s %s %s UTC", displayName, code, name, at.Format("Mon 15:04"))
}

func UnknownWaypointReply(code string) string {
	return fmt.Sprintf("Unknown waypoint code %s. Text HELP for commands.", code)
}

func WarningNotice(headline string) string {
	return "WX WARNING: " + headline
}
