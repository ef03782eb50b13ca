package domain

import (
	"errors"
	"time"
)

// StormSummary is the per-storm output record handed to sinks.
type StormSummary struct {
	ID               int       `json:"id"`
	Profile          string    `json:"profile"`
	RunID            string    `json:"run_id"`
	Name             string    `json:"name"`
	Year             int       `json:"year"`
	Decade           int       `json:"decade"`
	Start            time.Time `json:"start"`
	Landfall         bool      `json:"landfall"`
	ObservationCount int       `json:"observation_count"`
	PeakWind         int       `json:"peak_wind"`
	PeakCategory     Category  `json:"peak_category"`

	All   Point   `json:"avg_all"`
	Mid   Point   `json:"avg_mid"`
	First Point   `json:"avg_first"`
	Last  Point   `json:"avg_last"`
	Scale float64 `json:"scale"`

	// Weighted is set once the batch's largest scale is known.
	Weighted *Point `json:"weighted,omitempty"`

	// Reverse geocoding of All.
	PlaceName        string  `json:"place_name,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // "reverse", "original", "failed"

	ProcessedAt time.Time `json:"processed_at"`
}

// Summarize computes the four midpoints, the scale and the peak intensity of
// a storm. An empty storm fails with ErrEmptySequence.
func Summarize(s Storm, numMeas int) (StormSummary, error) {
	if err := checkNumMeas("summarize", numMeas); err != nil {
		return StormSummary{}, err
	}
	if len(s.Observations) == 0 {
		return StormSummary{}, &Error{Kind: ErrEmptySequence, Op: "summarize", StormID: s.ID}
	}

	track := s.Track()
	pts := Points(track)
	sum := StormSummary{
		ID:               s.ID,
		Name:             s.Name,
		Year:             s.Year,
		Decade:           s.Year / 10 * 10,
		Start:            s.Observations[0].Time,
		Landfall:         s.Landfall,
		ObservationCount: len(s.Observations),
		Scale:            CalcScale(pts),
	}
	sum.PeakWind, _ = s.PeakWind()
	sum.PeakCategory = categoryOf(sum.PeakWind)

	var err error
	if sum.All, err = AvgAll(pts); err != nil {
		return StormSummary{}, err
	}
	if sum.Mid, err = AvgMid(track, numMeas); err != nil {
		return StormSummary{}, err
	}
	if sum.First, err = AvgFirst(pts, numMeas); err != nil {
		return StormSummary{}, err
	}
	if sum.Last, err = AvgLast(pts, numMeas); err != nil {
		return StormSummary{}, err
	}
	sum.ProcessedAt = clock.Now()
	return sum, nil
}

// ScaleAccumulator collects the scales of every storm summarized in a batch.
// It is a value: Add returns the updated accumulator.
type ScaleAccumulator struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Max   float64 `json:"max"`
}

// Add records one storm's scale.
func (a ScaleAccumulator) Add(scale float64) ScaleAccumulator {
	a.Count++
	a.Sum += scale
	if scale > a.Max {
		a.Max = scale
	}
	return a
}

// SummarizeBatch summarizes each storm and folds its scale into acc. Empty
// storms are skipped; the returned error joins one ErrEmptySequence per
// skipped storm and does not invalidate the summaries returned with it.
func SummarizeBatch(storms []Storm, numMeas int, acc ScaleAccumulator) ([]StormSummary, ScaleAccumulator, error) {
	if err := checkNumMeas("summarize", numMeas); err != nil {
		return nil, acc, err
	}
	summaries := make([]StormSummary, 0, len(storms))
	var errs []error
	for _, s := range storms {
		sum, err := Summarize(s, numMeas)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		acc = acc.Add(sum.Scale)
		summaries = append(summaries, sum)
	}
	return summaries, acc, errors.Join(errs...)
}

// ApplyWeights sets Weighted on every summary to its whole-track midpoint
// scaled by Scale/scaleMax.
func ApplyWeights(summaries []StormSummary, scaleMax float64) error {
	if scaleMax <= 0 {
		return invalidInput("apply weights", "scale max %g must be positive", scaleMax)
	}
	for i := range summaries {
		w := weigh(summaries[i].All, summaries[i].Scale/scaleMax)
		summaries[i].Weighted = &w
	}
	return nil
}
