package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message. Returning nil acknowledges it.
type Handler func(ctx context.Context, msg Message) error

type SubscriberOption func(*Subscriber)

func WithDeadLetterSink(sink DeadLetterSink) SubscriberOption {
	return func(s *Subscriber) { s.deadLetters = sink }
}

type Subscriber struct {
	conn        *Connection
	logger      *slog.Logger
	metrics     Metrics
	deadLetters DeadLetterSink

	wg sync.WaitGroup
}

func NewSubscriber(conn *Connection, logger *slog.Logger, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		conn:        conn,
		logger:      logger,
		metrics:     conn.metrics,
		deadLetters: NewLogSink(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe binds a private, exclusive, auto-deleted queue to pattern and
// feeds every matching message to handler on its own goroutine. Events
// published while nothing is bound are not replayed.
func (s *Subscriber) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}

	setup := func(ch AMQPChannel) error {
		if ctx.Err() != nil {
			return nil
		}

		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare queue for %s: %w", pattern, err)
		}
		if err := ch.QueueBind(q.Name, pattern, s.conn.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", q.Name, pattern, err)
		}
		deliveries, err := ch.Consume(q.Name, "", false, true, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", q.Name, err)
		}

		s.logger.Info("subscribed", "pattern", pattern, "queue", q.Name)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.consume(ctx, q.Name, deliveries, handler)
		}()
		return nil
	}

	return s.conn.register(setup)
}

// Wait blocks until every consumer goroutine has returned.
func (s *Subscriber) Wait() {
	s.wg.Wait()
}

func (s *Subscriber) consume(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				// Channel gone; the connection replays the subscription.
				return
			}
			s.process(ctx, queue, d, handler)
		}
	}
}

func (s *Subscriber) process(ctx context.Context, queue string, d amqp.Delivery, handler Handler) {
	started := time.Now()

	msg, err := decodeDelivery(d)
	if err != nil {
		s.metrics.HandlerFailed(msg.RoutingKey)
		s.deadLetter(ctx, queue, d, msg, err)
		return
	}

	err = handler(ctx, msg)
	if err == nil {
		if err := s.conn.ack(d); err != nil {
			s.logger.Error("ack failed", "routing_key", msg.RoutingKey, "error", err)
			return
		}
		s.metrics.EventHandled(msg.RoutingKey, time.Since(started))
		return
	}

	s.metrics.HandlerFailed(msg.RoutingKey)
	s.logger.Error("handler failed",
		"routing_key", msg.RoutingKey, "redeliveries", msg.Redeliveries, "error", err)

	maxRedeliveries := s.conn.cfg.MaxRedeliveries
	switch {
	case IsPermanent(err):
		s.deadLetter(ctx, queue, d, msg, err)
	case maxRedeliveries < 0:
		s.requeue(d, msg)
	case msg.Redeliveries >= maxRedeliveries:
		s.deadLetter(ctx, queue, d, msg, fmt.Errorf("gave up after %d redeliveries: %w", msg.Redeliveries, err))
	default:
		s.retry(ctx, queue, d, msg)
	}
}

// retry puts a copy of the message back on the subscription's own queue
// with a bumped redelivery counter, then acknowledges the original.
func (s *Subscriber) retry(ctx context.Context, queue string, d amqp.Delivery, msg Message) {
	delay := s.backoff(msg.Redeliveries)
	select {
	case <-ctx.Done():
		s.requeue(d, msg)
		return
	case <-time.After(delay):
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderRoutingKey] = msg.RoutingKey
	headers[HeaderSchemaVersion] = int32(msg.Version)
	headers[HeaderRedeliveryCount] = int32(msg.Redeliveries + 1)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.conn.cfg.PublishTimeout)
	defer cancel()

	pub := amqp.Publishing{
		ContentType: contentTypeJSON,
		Timestamp:   d.Timestamp,
		Headers:     headers,
		Body:        d.Body,
	}
	err := s.conn.withChannel(func(ch AMQPChannel) error {
		return ch.PublishWithContext(pubCtx, "", queue, false, false, pub)
	})
	if err != nil {
		s.logger.Error("retry publish failed, requeueing", "routing_key", msg.RoutingKey, "error", err)
		s.requeue(d, msg)
		return
	}

	if err := s.conn.ack(d); err != nil {
		s.logger.Error("ack after retry failed", "routing_key", msg.RoutingKey, "error", err)
	}
	s.metrics.EventRetried(msg.RoutingKey)
	s.logger.Info("retry scheduled",
		"routing_key", msg.RoutingKey, "attempt", msg.Redeliveries+1, "backoff", delay)
}

func (s *Subscriber) backoff(redeliveries int) time.Duration {
	base := s.conn.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	limit := s.conn.cfg.MaxRetryBackoff
	if limit <= 0 {
		limit = time.Minute
	}
	delay := base
	for i := 0; i < redeliveries; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return delay
}

func (s *Subscriber) requeue(d amqp.Delivery, msg Message) {
	if err := s.conn.nack(d, true); err != nil {
		s.logger.Error("nack failed", "routing_key", msg.RoutingKey, "error", err)
	}
}

func (s *Subscriber) deadLetter(ctx context.Context, queue string, d amqp.Delivery, msg Message, cause error) {
	routingKey := msg.RoutingKey
	if routingKey == "" {
		routingKey = d.RoutingKey
	}
	version := msg.Version
	if version == 0 {
		version = DefaultSchemaVersion
	}

	dl := DeadLetter{
		RoutingKey:   routingKey,
		Version:      version,
		Queue:        queue,
		Redeliveries: msg.Redeliveries,
		Reason:       cause.Error(),
		Body:         d.Body,
		FailedAt:     time.Now().UTC(),
	}

	if err := s.deadLetters.DeadLetter(context.WithoutCancel(ctx), dl); err != nil {
		s.logger.Error("dead-letter sink failed, requeueing", "routing_key", routingKey, "error", errors.Join(cause, err))
		s.requeue(d, msg)
		return
	}

	if err := s.conn.ack(d); err != nil {
		s.logger.Error("ack after dead-letter failed", "routing_key", routingKey, "error", err)
	}
	s.metrics.EventDeadLettered(routingKey)
}
