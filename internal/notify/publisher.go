package notify

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaPublisher writes activities to a topic keyed by entity id, so every
// change to one entity lands on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, activity Activity) error {
	value, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(activity.EntityID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(activity.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// NopPublisher drops activities; used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, activity Activity) error { return nil }

func (NopPublisher) Close() error { return nil }
