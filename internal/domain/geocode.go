package domain

import (
	"context"
	"log/slog"
)

// EnrichWithPlace reverse geocodes a summary's whole-track midpoint. If
// geocoder is nil the summary is returned untouched; if the lookup fails or
// finds nothing, GeoSource records that and the summary is otherwise
// unchanged.
func EnrichWithPlace(ctx context.Context, sum StormSummary, geocoder Geocoder, logger *slog.Logger) StormSummary {
	if geocoder == nil {
		return sum
	}

	result, err := geocoder.ReverseGeocode(ctx, sum.All.Lat, sum.All.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"storm_id", sum.ID,
			"lat", sum.All.Lat,
			"lon", sum.All.Lon,
			"error", err,
		)
		sum.GeoSource = "failed"
		return sum
	}
	if result.FormattedAddress == "" {
		sum.GeoSource = "original"
		return sum
	}
	sum.FormattedAddress = result.FormattedAddress
	sum.PlaceName = result.PlaceName
	sum.GeoConfidence = result.Confidence
	sum.GeoSource = "reverse"
	return sum
}
