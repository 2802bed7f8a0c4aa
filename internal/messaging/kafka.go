package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/pkg/models"
)

// FeedbackEvent is the wire shape published for every accepted feedback
// submission, consumed by downstream analytics.
type FeedbackEvent struct {
	EventID   int64                 `json:"event_id"`
	UserID    string                `json:"user_id,omitempty"`
	Signal    models.FeedbackSignal `json:"signal"`
	Weight    float64               `json:"weight"`
	Tags      []string              `json:"tags,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// FeedbackEventBus publishes feedback events to Kafka. Publishing is
// best-effort from the engine's point of view; the ledger row is the source
// of truth.
type FeedbackEventBus struct {
	writer *kafka.Writer
	topic  string
	logger *logrus.Logger
}

func NewFeedbackEventBus(cfg *config.Config, logger *logrus.Logger) *FeedbackEventBus {
	return &FeedbackEventBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topics.FeedbackEvents,
			Balancer:     &kafka.Hash{}, // Key by user for per-user ordering downstream
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		topic:  cfg.Kafka.Topics.FeedbackEvents,
		logger: logger,
	}
}

// Publish writes one feedback event, keyed by user.
func (b *FeedbackEventBus) Publish(ctx context.Context, event FeedbackEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback event: %w", err)
	}

	key := event.UserID
	if key == "" {
		key = "anonymous"
	}

	message := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "signal", Value: []byte(event.Signal)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write feedback event: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"signal":   event.Signal,
		"topic":    b.topic,
	}).Debug("Published feedback event")

	return nil
}

func (b *FeedbackEventBus) Close() error {
	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close feedback event writer: %w", err)
	}
	return nil
}

// GetMetrics returns writer stats for monitoring.
func (b *FeedbackEventBus) GetMetrics() map[string]interface{} {
	stats := b.writer.Stats()
	return map[string]interface{}{
		"messages_written": stats.Messages,
		"bytes_written":    stats.Bytes,
		"write_errors":     stats.Errors,
		"batch_time_avg":   stats.BatchTime.Avg,
	}
}
