package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
)

// StormTransformer implements Transformer using the domain averaging engine
// with optional reverse geocoding of each storm's midpoint.
type StormTransformer struct {
	geocoder domain.Geocoder
	runID    string
	logger   *slog.Logger
}

// NewTransformer creates a StormTransformer that stamps every summary with
// runID. Pass a nil geocoder to disable geocoding enrichment.
func NewTransformer(geocoder domain.Geocoder, runID string, logger *slog.Logger) *StormTransformer {
	return &StormTransformer{
		geocoder: geocoder,
		runID:    runID,
		logger:   logger,
	}
}

// Transform filters the storms by the profile's criteria, summarizes the
// survivors with a fresh scale accumulator and weights them by the largest
// scale seen.
func (t *StormTransformer) Transform(ctx context.Context, profile domain.Profile, storms []domain.Storm) (ProfileResult, error) {
	var res ProfileResult

	selected := make([]domain.Storm, 0, len(storms))
	for _, s := range storms {
		kept, ok := profile.Criteria.Apply(s)
		if !ok {
			res.Filtered++
			continue
		}
		selected = append(selected, kept)
	}

	// Scale, like the midpoints, only sees the observations the profile kept.
	summaries, acc, err := domain.SummarizeBatch(selected, profile.NumMeas, domain.ScaleAccumulator{})
	if err != nil {
		if summaries == nil || !errors.Is(err, domain.ErrEmptySequence) {
			return ProfileResult{}, fmt.Errorf("summarize: %w", err)
		}
		t.logger.Warn("storms without observations skipped", "profile", profile.Name, "error", err)
	}
	if acc.Max > 0 {
		if err := domain.ApplyWeights(summaries, acc.Max); err != nil {
			return ProfileResult{}, err
		}
	}

	for i := range summaries {
		if err := ctx.Err(); err != nil {
			return ProfileResult{}, err
		}
		summaries[i] = domain.EnrichWithPlace(ctx, summaries[i], t.geocoder, t.logger)
		summaries[i].Profile = profile.Name
		summaries[i].RunID = t.runID
	}

	res.Summaries = summaries
	res.Scales = acc
	return res, nil
}
