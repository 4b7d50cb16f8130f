package zone

import (
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
)

// Zone groups nearby waypoints so their forecast fetches share one upstream
// call. The ID is an s2 cell token at a fixed level: a pure function of
// (lat, lon), stable across processes.
type Zone struct {
	ID          string
	Country     string
	ProviderKey string
}

// ValidationError reports coordinates outside the valid lat/lon ranges or a
// malformed waypoint code. It is user-correctable, never fatal.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Resolver maps waypoint coordinates to a weather zone and provider key.
// Deterministic; makes no network calls.
type Resolver struct {
	cellLevel int
	providers map[string]string // country -> provider key
	fallback  string
}

func NewResolver(cellLevel int) *Resolver {
	if cellLevel <= 0 || cellLevel > 30 {
		cellLevel = 8
	}
	return &Resolver{
		cellLevel: cellLevel,
		providers: map[string]string{
			"AU": "bom",
			"US": "nws",
		},
		fallback: "openmeteo",
	}
}

// Resolve returns the weather zone for a coordinate, selecting the provider
// by the country the coordinate falls in.
func (r *Resolver) Resolve(lat, lon float64) (Zone, error) {
	if lat < -90 || lat > 90 {
		return Zone{}, &ValidationError{Field: "latitude", Msg: fmt.Sprintf("%.4f outside [-90,90]", lat)}
	}
	if lon < -180 || lon > 180 {
		return Zone{}, &ValidationError{Field: "longitude", Msg: fmt.Sprintf("%.4f outside [-180,180]", lon)}
	}

	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(r.cellLevel)
	country := CountryFromCoords(lat, lon)
	return Zone{
		ID:          cell.ToToken(),
		Country:     country,
		ProviderKey: r.ProviderFor(country),
	}, nil
}

// ResolveForPhone is Resolve with the provider chosen by the requesting
// phone's country instead of the coordinate's. Used for inbound GPS requests
// where the number's home met service is the one the hiker subscribed to.
func (r *Resolver) ResolveForPhone(lat, lon float64, phone string) (Zone, error) {
	z, err := r.Resolve(lat, lon)
	if err != nil {
		return Zone{}, err
	}
	if country := CountryFromPhone(phone); country != "" {
		z.Country = country
		z.ProviderKey = r.ProviderFor(country)
	}
	return z, nil
}

func (r *Resolver) ProviderFor(country string) string {
	if key, ok := r.providers[country]; ok {
		return key
	}
	return r.fallback
}

// countryBox is a rough bounding box; enough to pick a national met service.
// Ambiguous or unlisted coordinates route to the global fallback model.
type countryBox struct {
	code           string
	minLat, maxLat float64
	minLon, maxLon float64
}

var countryBoxes = []countryBox{
	{"AU", -44.0, -9.0, 112.0, 154.5},
	{"NZ", -47.5, -34.0, 166.0, 179.0},
	{"US", 24.0, 49.5, -125.0, -66.0},  // contiguous states
	{"US", 51.0, 72.0, -170.0, -129.0}, // Alaska
}

// CountryFromCoords returns the ISO country code whose box contains the
// coordinate, or "" when no national provider covers it.
func CountryFromCoords(lat, lon float64) string {
	for _, b := range countryBoxes {
		if lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon {
			return b.code
		}
	}
	return ""
}

var phonePrefixes = map[string]string{
	"+61": "AU",
	"+64": "NZ",
	"+1":  "US",
}

// CountryFromPhone maps an E.164 number to a country code by dialing prefix.
func CountryFromPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	for prefix, country := range phonePrefixes {
		if strings.HasPrefix(phone, prefix) {
			return country
		}
	}
	return ""
}
