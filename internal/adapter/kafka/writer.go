package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/hurdat-etl/internal/config"
	"github.com/couchcryptid/hurdat-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces storm summaries to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes the batch in a single WriteMessages call. Messages are
// keyed by profile and storm so reruns of a profile land on one partition.
func (w *Writer) LoadBatch(ctx context.Context, summaries []domain.StormSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(summaries))
	for i := range summaries {
		msg, err := serializeToMessage(summaries[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("kafka batch written", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a StormSummary into a Kafka message.
func serializeToMessage(s domain.StormSummary) (kafkago.Message, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize storm summary: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.Profile + "-" + strconv.Itoa(s.ID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "profile", Value: []byte(s.Profile)},
			{Key: "run_id", Value: []byte(s.RunID)},
			{Key: "processed_at", Value: []byte(s.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
