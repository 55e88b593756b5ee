package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/charmbracelet/log"

	"blockwatch/internal/domain"
)

// DeduplicationHeader carries the address_id when the caller asks downstream
// consumers to drop repeats.
const DeduplicationHeader = "deduplication-id"

// KafkaPublisher sends events to a single topic, keyed by address_id so all
// events for one address land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaConfig(clientID string) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	version, err := sarama.ParseKafkaVersion("2.1.0")
	if err != nil {
		return nil, fmt.Errorf("parse kafka version: %w", err)
	}
	cfg.Version = version
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Timeout = 10 * time.Second
	return cfg, nil
}

func NewKafkaPublisher(brokers []string, topic, clientID string) (*KafkaPublisher, error) {
	cfg, err := NewKafkaConfig(clientID)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg domain.EventMessage, deduplicate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := domain.EncodeEventMessage(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	id := msg.Record.AddressID.String()
	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(id),
		Value: sarama.ByteEncoder(payload),
	}
	if deduplicate {
		message.Headers = []sarama.RecordHeader{{Key: []byte(DeduplicationHeader), Value: []byte(id)}}
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("send event to %s: %w", p.topic, err)
	}
	log.Debug("Event published", "topic", p.topic, "address_id", id, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
