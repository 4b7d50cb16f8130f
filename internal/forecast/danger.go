package forecast

import "thunderbird/internal/weather"

// Rating is the ordinal terrain danger classification D0 (benign) to D4
// (all four factors active).
type Rating int

const (
	D0 Rating = iota
	D1
	D2
	D3
	D4
)

func (r Rating) String() string {
	return [...]string{"D0", "D1", "D2", "D3", "D4"}[r]
}

// Factors are the four boolean danger inputs for one forecast window.
type Factors struct {
	Ice    bool // waypoint above the freezing level
	Blind  bool // cloud base below the waypoint (in cloud)
	Wind   bool // wind above windDangerKmh
	Precip bool // precipitation above precipDangerMM
}

const (
	windDangerKmh  = 40.0
	precipDangerMM = 10.0
)

// campMaxRating caps camps: sheltered valley terrain never rates above D2
// however bad the weather, so camp pushes stay readable instead of alarming.
const campMaxRating = D2

// RateWindow computes the danger factors and rating for one window at a
// waypoint. Pure: same inputs always produce the same rating.
func RateWindow(w weather.Window, waypointElev float64, waypointType string) (Factors, Rating) {
	f := Factors{
		Ice:    waypointElev > w.FreezingLevelM,
		Blind:  w.CloudBaseM < waypointElev,
		Wind:   w.WindMaxKmh > windDangerKmh,
		Precip: w.RainMM > precipDangerMM,
	}

	count := 0
	for _, active := range []bool{f.Ice, f.Blind, f.Wind, f.Precip} {
		if active {
			count++
		}
	}
	rating := Rating(count)
	if waypointType == "camp" && rating > campMaxRating {
		rating = campMaxRating
	}
	return f, rating
}
