package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// DeadLetter is a message the bus gave up on, together with the reason.
type DeadLetter struct {
	RoutingKey   string    `json:"routing_key"`
	Version      int       `json:"version"`
	Queue        string    `json:"queue"`
	Redeliveries int       `json:"redeliveries"`
	Reason       string    `json:"reason"`
	Body         []byte    `json:"body"`
	FailedAt     time.Time `json:"failed_at"`
}

// DeadLetterSink stores messages that exhausted their retries. When the sink
// fails the message is requeued on the broker instead of being acknowledged.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl DeadLetter) error
}

// LogSink only records dead letters in the service log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) DeadLetter(_ context.Context, dl DeadLetter) error {
	s.logger.Error("DLQ: dropping message",
		"routing_key", dl.RoutingKey,
		"version", dl.Version,
		"queue", dl.Queue,
		"redeliveries", dl.Redeliveries,
		"reason", dl.Reason,
		"body", string(dl.Body),
	)
	return nil
}
