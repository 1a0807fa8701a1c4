// Package alerts publishes detected anomaly events to Kafka for
// downstream alerting consumers.
package alerts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/anomaly"
)

// Publisher writes anomaly events to a Kafka topic, keyed by device id so
// one station's events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string, batchTimeout, writeTimeout time.Duration, logger *zap.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			WriteTimeout: writeTimeout,
			RequiredAcks: kafka.RequireOne,
		},
		logger: logger,
	}
}

// Publish sends a batch of anomaly events. Publishing is best effort:
// failures are logged and returned but never block ingestion.
func (p *Publisher) Publish(ctx context.Context, events []anomaly.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			p.logger.Error("failed to marshal anomaly event", zap.Error(err))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.DeviceID),
			Value: data,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish anomaly events",
			zap.Int("events", len(msgs)), zap.Error(err))
		return err
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
