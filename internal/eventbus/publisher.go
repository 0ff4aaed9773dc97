package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn    *Connection
	logger  *slog.Logger
	metrics Metrics
}

func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:    conn,
		logger:  logger,
		metrics: conn.metrics,
	}
}

// Publish sends payload as a JSON object to the exchange. It never fails the
// caller: a lost event is logged and counted, and the canonical write that
// preceded it stands.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) {
	if err := p.TryPublish(ctx, routingKey, payload); err != nil {
		p.logger.Error("event publish failed", "routing_key", routingKey, "error", err)
	}
}

// TryPublish is Publish for callers that act on the outcome.
func (p *Publisher) TryPublish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return p.failed(routingKey, fmt.Errorf("marshal payload: %w", err))
	}
	return p.PublishRaw(ctx, routingKey, schemaVersionOf(payload), body)
}

// PublishRaw sends an already encoded payload with an explicit schema version.
func (p *Publisher) PublishRaw(ctx context.Context, routingKey string, version int, body []byte) error {
	if err := ValidateRoutingKey(routingKey); err != nil {
		return p.failed(routingKey, err)
	}
	if !isJSONObject(body) {
		return p.failed(routingKey, ErrInvalidPayload)
	}
	if version < 1 {
		version = DefaultSchemaVersion
	}

	// The write already committed; a cancelled request must not drop its event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.conn.cfg.PublishTimeout)
	defer cancel()

	msg := amqp.Publishing{
		ContentType: contentTypeJSON,
		Timestamp:   time.Now().UTC(),
		Headers:     amqp.Table{HeaderSchemaVersion: int32(version)},
		Body:        body,
	}

	err := p.conn.withChannel(func(ch AMQPChannel) error {
		return ch.PublishWithContext(pubCtx, p.conn.cfg.Exchange, routingKey, false, false, msg)
	})
	if err != nil {
		return p.failed(routingKey, err)
	}

	p.metrics.EventPublished(routingKey)
	return nil
}

func (p *Publisher) failed(routingKey string, err error) error {
	p.metrics.PublishFailed(routingKey)
	return &PublishError{RoutingKey: routingKey, Err: err}
}
