package route

import "time"

// Route is one registered trip: an ordered waypoint sequence, an active
// date window, and the hiker's unit preference. The end date only moves
// forward (DELAY) until DONE freezes it.
type Route struct {
	ID        string     `json:"id"`
	Phone     string     `json:"phone"`
	Name      string     `json:"name"`
	Units     string     `json:"units"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Done      bool       `json:"done"`
	Waypoints []Waypoint `json:"waypoints"`
	CreatedAt time.Time  `json:"created_at"`
}

// Waypoint is one named point on a route. Code is the 5-character uppercase
// identifier hikers text to check in; ZoneID is the derived weather-zone
// key, cached at registration.
type Waypoint struct {
	RouteID    string  `json:"route_id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Type       string  `json:"type"` // camp|peak|hut|trailhead|endpoint
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ElevationM float64 `json:"elevation_m"`
	ZoneID     string  `json:"zone_id"`
	Position   int     `json:"position"`
}

// SafeCheckContact gets a notification SMS when the hiker checks in.
type SafeCheckContact struct {
	RouteID     string `json:"route_id"`
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
}

// WaypointByCode returns the route waypoint with the given code.
func (r Route) WaypointByCode(code string) (Waypoint, bool) {
	for _, wp := range r.Waypoints {
		if wp.Code == code {
			return wp, true
		}
	}
	return Waypoint{}, false
}

// Codes lists the route's waypoint codes in order.
func (r Route) Codes() []string {
	codes := make([]string, len(r.Waypoints))
	for i, wp := range r.Waypoints {
		codes[i] = wp.Code
	}
	return codes
}

// Active reports whether the route's service window covers now.
func (r Route) Active(now time.Time) bool {
	return !r.Done && !now.Before(r.StartDate) && !now.After(r.EndDate)
}
