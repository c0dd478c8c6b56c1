package repository

import (
	"context"

	"TIKR/internal/domain/models"
	drepo "TIKR/internal/domain/repository"
	pkgkafka "TIKR/pkg/kafka"
)

// KafkaPublisher implements EventPublisher for Kafka. Events are keyed by
// ticker so per-ticker ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ drepo.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a Kafka event publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) drepo.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one event per message, all in a single producer write so a
// refresh cycle costs one round trip regardless of how many tickers it touched.
func (p *KafkaPublisher) Publish(ctx context.Context, evs ...*models.PredictionEvent) error {
	switch len(evs) {
	case 0:
		return nil
	case 1:
		return p.producer.Publish(ctx, p.topic, []byte(evs[0].Ticker), evs[0])
	}

	msgs := make([]pkgkafka.Message, 0, len(evs))
	for _, ev := range evs {
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.Ticker), Value: ev})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
