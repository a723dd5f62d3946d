package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/models"
)

var errProducerNotInitialised = errors.New("kafka sink: producer not initialised")

// SyncProducer captures the subset of producer behaviour the Kafka sink
// requires.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// KafkaSink publishes engine events to a Kafka topic using the shared
// producer. Events for the same message share a partition key so consumers
// observe them in order.
type KafkaSink struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewKafkaSink constructs a KafkaSink instance.
func NewKafkaSink(prod SyncProducer, topic string, logger zerolog.Logger) *KafkaSink {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &KafkaSink{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// Emit implements Sink.
func (s *KafkaSink) Emit(_ context.Context, event models.Event) error {
	if s == nil || s.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal event: %w", err)
	}

	key := event.MessageID
	if key == "" {
		key = event.CycleID
	}
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}

	if err := s.producer.PublishSync(s.topic, []byte(key), headers, payload); err != nil {
		return fmt.Errorf("kafka sink: publish event: %w", err)
	}
	return nil
}
