package eventbus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	HeaderSchemaVersion   = "x-schema-version"
	HeaderRedeliveryCount = "x-redelivery-count"
	// HeaderRoutingKey keeps the original routing key on messages retried
	// through the default exchange.
	HeaderRoutingKey = "x-routing-key"

	DefaultSchemaVersion = 1
	contentTypeJSON      = "application/json"
)

// Versioned payloads choose the schema version header. Payloads without it
// are published as DefaultSchemaVersion.
type Versioned interface {
	SchemaVersion() int
}

// Message is one decoded delivery handed to a Handler.
type Message struct {
	RoutingKey   string
	Version      int
	Body         json.RawMessage
	Redeliveries int
	Timestamp    time.Time
}

func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.RoutingKey, err)
	}
	return nil
}

func decodeDelivery(d amqp.Delivery) (Message, error) {
	msg := Message{
		RoutingKey:   d.RoutingKey,
		Version:      DefaultSchemaVersion,
		Redeliveries: 0,
		Timestamp:    d.Timestamp,
	}

	if key, ok := d.Headers[HeaderRoutingKey].(string); ok && key != "" {
		msg.RoutingKey = key
	}
	if v, ok := headerInt(d.Headers, HeaderSchemaVersion); ok {
		msg.Version = v
	}
	if n, ok := headerInt(d.Headers, HeaderRedeliveryCount); ok && n > 0 {
		msg.Redeliveries = n
	}

	if msg.Version < 1 {
		return msg, fmt.Errorf("schema version %d: %w", msg.Version, ErrUnsupportedVersion)
	}
	if !isJSONObject(d.Body) {
		return msg, ErrInvalidPayload
	}
	msg.Body = json.RawMessage(d.Body)

	return msg, nil
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

func schemaVersionOf(payload any) int {
	if v, ok := payload.(Versioned); ok && v.SchemaVersion() > 0 {
		return v.SchemaVersion()
	}
	return DefaultSchemaVersion
}

func headerInt(headers amqp.Table, key string) (int, bool) {
	switch v := headers[key].(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	default:
		return 0, false
	}
}
