package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"socialp/internal/eventbus"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

const maxPublishBackoff = 30 * time.Second

// DeadLetterSource is a committed-offset reader over the dead-letter topic.
type DeadLetterSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Republisher interface {
	PublishRaw(ctx context.Context, routingKey string, version int, body []byte) error
}

// Redriver moves dead letters back onto the event exchange. The redelivery
// counter starts from zero because the message is published fresh. An offset
// is committed only after the publish succeeded.
type Redriver struct {
	source    DeadLetterSource
	publisher Republisher
	logger    *slog.Logger

	redriven  prometheus.Counter
	skipped   prometheus.Counter
	failures  prometheus.Counter
	baseDelay time.Duration
}

func NewRedriver(source DeadLetterSource, publisher Republisher, reg prometheus.Registerer, logger *slog.Logger) *Redriver {
	factory := promauto.With(reg)
	return &Redriver{
		source:    source,
		publisher: publisher,
		logger:    logger,
		redriven: factory.NewCounter(prometheus.CounterOpts{
			Name: "redrive_events_published_total",
			Help: "The total number of dead letters published back to the exchange",
		}),
		skipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "redrive_events_skipped_total",
			Help: "The total number of unreadable dead letters that were committed without publishing",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "redrive_publish_errors_total",
			Help: "The total number of failed publish attempts",
		}),
		baseDelay: time.Second,
	}
}

// Run processes dead letters until ctx is cancelled or maxMessages were
// handled. maxMessages <= 0 means no limit.
func (r *Redriver) Run(ctx context.Context, maxMessages int) error {
	r.logger.Info("redrive started")

	for handled := 0; maxMessages <= 0 || handled < maxMessages; handled++ {
		msg, err := r.source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch dead letter: %w", err)
		}

		if err := r.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	r.logger.Info("redrive finished", "messages", maxMessages)
	return nil
}

func (r *Redriver) handle(ctx context.Context, msg kafka.Message) error {
	dl, err := decodeDeadLetter(msg.Value)
	if err != nil {
		r.logger.Error("skipping unreadable dead letter",
			"partition", msg.Partition, "offset", msg.Offset, "error", err)
		r.skipped.Inc()
		return r.commit(ctx, msg)
	}

	for attempt := 0; ; attempt++ {
		err := r.publisher.PublishRaw(ctx, dl.RoutingKey, dl.Version, dl.Body)
		if err == nil {
			break
		}
		r.failures.Inc()

		if errors.Is(err, eventbus.ErrInvalidPayload) {
			r.logger.Error("skipping dead letter with invalid payload",
				"routing_key", dl.RoutingKey, "offset", msg.Offset, "error", err)
			r.skipped.Inc()
			return r.commit(ctx, msg)
		}

		delay := r.backoff(attempt)
		r.logger.Warn("redrive publish failed, retrying",
			"routing_key", dl.RoutingKey, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.redriven.Inc()
	r.logger.Info("dead letter redriven",
		"routing_key", dl.RoutingKey,
		"version", dl.Version,
		"queue", dl.Queue,
		"reason", dl.Reason,
		"offset", msg.Offset,
	)
	return r.commit(ctx, msg)
}

func (r *Redriver) commit(ctx context.Context, msg kafka.Message) error {
	if err := r.source.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

func (r *Redriver) backoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	d := r.baseDelay * time.Duration(1<<attempt)
	if d > maxPublishBackoff {
		d = maxPublishBackoff
	}
	return d
}

func decodeDeadLetter(value []byte) (eventbus.DeadLetter, error) {
	var dl eventbus.DeadLetter
	if err := json.Unmarshal(value, &dl); err != nil {
		return dl, fmt.Errorf("decode dead letter: %w", err)
	}
	if err := eventbus.ValidateRoutingKey(dl.RoutingKey); err != nil {
		return dl, err
	}
	if len(dl.Body) == 0 {
		return dl, errors.New("dead letter has no body")
	}
	return dl, nil
}
