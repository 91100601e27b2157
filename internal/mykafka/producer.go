package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	batchTimeout = 10 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// Producer writes JSON events. Delivery is asynchronous; failed batches are logged.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, log *slog.Logger) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				log.Error("kafka_delivery_failed", "topic", m.Topic, "key", string(m.Key), "error", err)
			}
		},
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event any) error {
	msg, err := buildMessage(topic, key, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func buildMessage(topic, key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now().UTC(),
	}, nil
}
