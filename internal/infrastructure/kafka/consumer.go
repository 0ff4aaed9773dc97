package kafka

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeadLetterReader reads the dead-letter topic as part of a consumer group
// with manual commits.
type DeadLetterReader struct {
	reader *kafka.Reader
}

func NewDeadLetterReader(cfg Config) *DeadLetterReader {
	startOffset := kafka.FirstOffset
	// Only used when the group has no committed offset yet.
	if v := strings.TrimSpace(os.Getenv("KAFKA_START_OFFSET")); strings.EqualFold(v, "latest") {
		startOffset = kafka.LastOffset
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: false,
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     1 * time.Second,
		Dialer:      dialer,
		StartOffset: startOffset,
	})
	return &DeadLetterReader{reader: r}
}

func (c *DeadLetterReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

func (c *DeadLetterReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return c.reader.CommitMessages(ctx, msgs...)
}

func (c *DeadLetterReader) Close() error {
	return c.reader.Close()
}
