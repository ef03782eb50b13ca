package domain

import "time"

// Observation is one synoptic-hour measurement of a storm.
type Observation struct {
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Wind     int       `json:"wind"`     // knots, 0 = not reported
	Pressure int       `json:"pressure"` // hPa, MissingPressure = not reported
	Stage    Stage     `json:"stage"`
}

// Category is derived from wind on every call and never stored.
func (o Observation) Category() Category {
	return categoryOf(o.Wind)
}

// Storm is one storm record: the header attributes plus its observations in
// chronological order. A storm may have no observations.
type Storm struct {
	ID       int
	Name     string
	Year     int
	Start    time.Time // header date at 00Z
	Landfall bool

	// DeclaredDays is the header's M= count; DaysRead counts observation
	// lines actually consumed.
	DeclaredDays int
	DaysRead     int

	Observations []Observation
}

// Track returns the positions and winds fed to the averaging engine.
func (s Storm) Track() []TrackPoint {
	track := make([]TrackPoint, len(s.Observations))
	for i, o := range s.Observations {
		track[i] = TrackPoint{Point: Point{Lat: o.Lat, Lon: o.Lon}, Wind: o.Wind}
	}
	return track
}

// PeakWind returns the highest wind observed and the index of its first
// occurrence, or -1 for an empty storm.
func (s Storm) PeakWind() (int, int) {
	peak, idx := 0, -1
	for i, o := range s.Observations {
		if idx < 0 || o.Wind > peak {
			peak, idx = o.Wind, i
		}
	}
	return peak, idx
}

// ObservationRecord is one row of the flat observation export: an
// observation together with its storm's identity and the derived category.
type ObservationRecord struct {
	StormID  int       `json:"storm_id"`
	Name     string    `json:"name"`
	Landfall bool      `json:"landfall"`
	Time     time.Time `json:"time"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Wind     int       `json:"wind"`
	Pressure int       `json:"pressure"`
	Stage    Stage     `json:"stage"`
	Category Category  `json:"category"`
}

// Records flattens the storm into one ObservationRecord per observation.
func (s Storm) Records() []ObservationRecord {
	out := make([]ObservationRecord, len(s.Observations))
	for i, o := range s.Observations {
		out[i] = ObservationRecord{
			StormID:  s.ID,
			Name:     s.Name,
			Landfall: s.Landfall,
			Time:     o.Time,
			Lat:      o.Lat,
			Lon:      o.Lon,
			Wind:     o.Wind,
			Pressure: o.Pressure,
			Stage:    o.Stage,
			Category: o.Category(),
		}
	}
	return out
}
