//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/adapter/hurdatfile"
	"github.com/couchcryptid/hurdat-etl/internal/adapter/kafka"
	"github.com/couchcryptid/hurdat-etl/internal/config"
	"github.com/couchcryptid/hurdat-etl/internal/domain"
	"github.com/couchcryptid/hurdat-etl/internal/observability"
	"github.com/couchcryptid/hurdat-etl/internal/pipeline"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	kafkaImage    = "confluentinc/confluent-local:7.5.0"
	testSinkTopic = "test-storm-summaries"
	samplePath    = "../../testdata/hurdat_sample.txt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, kafkaImage)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// sinkMessage holds a deserialized message read from the sink topic.
type sinkMessage struct {
	Summary domain.StormSummary
	Key     string
	Headers map[string]string
}

func readSummary(ctx context.Context, t *testing.T, consumer *kafkago.Reader) sinkMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var s domain.StormSummary
	require.NoError(t, json.Unmarshal(msg.Value, &s), "unmarshal sink message")

	return sinkMessage{Summary: s, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     "test-sink-" + uuid.NewString(),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestPipelineEndToEnd runs the sample dataset through the file reader, the
// pipeline and the Kafka writer, and reads the summaries back.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaSinkTopic: testSinkTopic}

	reader, err := hurdatfile.Open(samplePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	runID := uuid.NewString()
	transformer := pipeline.NewTransformer(nil, runID, discardLogger())
	p := pipeline.New(reader, transformer, []pipeline.BatchLoader{writer}, discardLogger(),
		observability.NewMetricsForTesting(), pipeline.Options{BatchSize: 2})

	landfall := true
	profiles := []domain.Profile{
		{Name: "all", NumMeas: 4},
		{Name: "landfall", NumMeas: 4, Criteria: domain.Criteria{Landfall: &landfall}},
	}
	report, err := p.Run(ctx, profiles)
	require.NoError(t, err)
	require.Len(t, report.Profiles, 2)
	assert.Equal(t, 3, report.Profiles[0].Loaded)
	assert.Equal(t, 1, report.Profiles[1].Loaded)

	consumer := newConsumer(t, broker)
	byKey := make(map[string]sinkMessage)
	for range 4 {
		m := readSummary(ctx, t, consumer)
		byKey[m.Key] = m
	}

	require.Contains(t, byKey, "all-188601")
	require.Contains(t, byKey, "all-188602")
	require.Contains(t, byKey, "all-188701")
	require.Contains(t, byKey, "landfall-188601")

	m := byKey["all-188601"]
	assert.Equal(t, "all", m.Headers["profile"])
	assert.Equal(t, runID, m.Headers["run_id"])
	_, err = time.Parse(time.RFC3339, m.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	assert.Equal(t, 100, m.Summary.PeakWind)
	assert.Equal(t, domain.Hurricane3, m.Summary.PeakCategory)
	assert.InDelta(t, 28.728430, m.Summary.All.Lat, 1e-6)
	assert.InDelta(t, -97.804582, m.Summary.All.Lon, 1e-6)
	require.NotNil(t, m.Summary.Weighted, "weights are applied once the profile's max scale is known")

	// The landfall profile only keeps storm 188601; its scale is the profile max.
	lf := byKey["landfall-188601"].Summary
	require.NotNil(t, lf.Weighted)
	assert.InDelta(t, lf.All.Lat, lf.Weighted.Lat, 1e-9)
}
