package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// Publisher fans order lifecycle events out to downstream consumers.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type recordProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes OrderEvents keyed by thread so one customer's events
// stay on a single partition.
type KafkaPublisher struct {
	client recordProducer
	topic  string
	logger *logging.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logging.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: kafka brokers required")
	}
	if topic == "" {
		return nil, errors.New("events: kafka topic required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("events: create kafka client: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("kafka publisher configured", "brokers", brokers, "topic", topic)
	return newKafkaPublisherWithProducer(client, topic, logger), nil
}

func newKafkaPublisherWithProducer(client recordProducer, topic string, logger *logging.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	rec := &kgo.Record{
		Topic:     p.topic,
		Key:       []byte(event.ThreadKey),
		Value:     payload,
		Timestamp: event.OccurredAt,
		Headers:   []kgo.RecordHeader{{Key: "event_type", Value: []byte(event.Type)}},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("events: publish to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.logger.Info("closing kafka publisher", "topic", p.topic)
	p.client.Close()
}
