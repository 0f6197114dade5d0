package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/epiwatch/outbreak-engine/internal/config"
	"github.com/epiwatch/outbreak-engine/internal/domain"
)

// Dispatcher publishes alert batches to a Kafka topic.
// It implements alert.Dispatcher.
type Dispatcher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewDispatcher creates a Kafka producer for the configured alert topic.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Dispatcher{writer: w, logger: logger}
}

// Dispatch serializes and publishes a batch of alerts in a single
// WriteMessages call for efficiency.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return d.writer.WriteMessages(ctx, msgs...)
}

func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

// serializeToMessage marshals an Alert into a Kafka message. The alert ID is
// the message key, so reruns of the same (region, date, reason) land on the
// same partition and downstream consumers can deduplicate.
func serializeToMessage(alert domain.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "disease", Value: []byte(alert.Disease)},
			{Key: "severity", Value: []byte(string(alert.Severity))},
			{Key: "created_at", Value: []byte(alert.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
