package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"socialp/internal/eventbus"

	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterWriter parks events the bus gave up on in a Kafka topic, keyed
// by routing key, until the redrive worker replays them.
type DeadLetterWriter struct {
	writer messageWriter
	topic  string
}

func NewDeadLetterWriter(cfg Config) *DeadLetterWriter {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &DeadLetterWriter{writer: w, topic: cfg.Topic}
}

func (p *DeadLetterWriter) DeadLetter(ctx context.Context, dl eventbus.DeadLetter) error {
	value, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(dl.RoutingKey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "routing_key", Value: []byte(dl.RoutingKey)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(dl.Version))},
		},
		Time: dl.FailedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write dead letter to %s: %w", p.topic, err)
	}
	return nil
}

func (p *DeadLetterWriter) Topic() string {
	return p.topic
}

func (p *DeadLetterWriter) Close() error {
	return p.writer.Close()
}
