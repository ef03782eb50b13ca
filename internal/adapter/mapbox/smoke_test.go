//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ReverseGeocode_Landfall(t *testing.T) {
	c := smokeClient(t)

	// Midpoint of the 1886 Indianola hurricane track.
	result, err := c.ReverseGeocode(context.Background(), 28.728430, -97.804582)
	require.NoError(t, err)

	assert.Contains(t, result.FormattedAddress, "Texas")
	assert.NotEmpty(t, result.PlaceName)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestSmoke_ReverseGeocode_OpenWater(t *testing.T) {
	c := smokeClient(t)

	// Mid-Atlantic; Mapbox may or may not name a region, either is fine.
	_, err := c.ReverseGeocode(context.Background(), 30.755862, -61.901784)
	require.NoError(t, err)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 29.4241, -98.4936)
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Texas")

	r2, err := cached.ReverseGeocode(context.Background(), 29.4241, -98.4936)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
