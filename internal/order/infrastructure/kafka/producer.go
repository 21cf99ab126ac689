package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Publisher is the order-events Kafka producer behind the outbox dispatcher.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			// Topic comes from each message; the dispatcher sets it.
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
