package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	summary := domain.StormSummary{
		ID:           188601,
		Profile:      "landfall",
		RunID:        "run-1",
		Name:         "NOT NAMED",
		Year:         1886,
		PeakWind:     100,
		PeakCategory: domain.Hurricane3,
		All:          domain.Point{Lat: 28.72843, Lon: -97.804582},
		ProcessedAt:  now,
	}

	msg, err := serializeToMessage(summary)
	require.NoError(t, err)

	assert.Equal(t, []byte("landfall-188601"), msg.Key)
	assert.Contains(t, string(msg.Value), `"peak_category":"H3"`)
	assert.NotContains(t, string(msg.Value), `"weighted"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "profile", msg.Headers[0].Key)
	assert.Equal(t, []byte("landfall"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)

	var decoded domain.StormSummary
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, summary.All, decoded.All)
}

func TestSerializeToMessage_Weighted(t *testing.T) {
	msg, err := serializeToMessage(domain.StormSummary{
		ID:       188602,
		Profile:  "all",
		Weighted: &domain.Point{Lat: 3.768, Lon: -7.584},
	})
	require.NoError(t, err)
	assert.Contains(t, string(msg.Value), `"weighted":{"lat":3.768,"lon":-7.584}`)
}
