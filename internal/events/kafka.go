package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/spec-kit/case-service/internal/config"
)

const kafkaWriteTimeout = 5 * time.Second

// KafkaForwarder republishes case events to a Kafka topic keyed by case id.
type KafkaForwarder struct {
	writer *kafka.Writer
}

// NewKafkaForwarder builds a forwarder for the configured brokers.
func NewKafkaForwarder(cfg config.KafkaConfig) (*KafkaForwarder, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka forwarder requires at least one broker")
	}
	return &KafkaForwarder{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireOne,
			Balancer:     &kafka.Hash{},
			WriteTimeout: kafkaWriteTimeout,
		},
	}, nil
}

// Handle is an EventHandler.
func (f *KafkaForwarder) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	return f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CaseID),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// Close flushes and closes the writer.
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
