// Package eventbus is the RabbitMQ topic exchange client shared by every
// service: one connection and one channel per process, fire-and-forget
// publishing and manual-ack subscriptions that survive reconnects.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Config struct {
	URL             string
	Exchange        string
	ConnectRetries  int
	ConnectDelay    time.Duration
	Prefetch        int
	PublishTimeout  time.Duration
	MaxRedeliveries int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

type Option func(*Connection)

func WithDialer(d Dialer) Option {
	return func(c *Connection) { c.dial = d }
}

func WithMetrics(m Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// setupFunc declares broker side state on a fresh channel. Registered setups
// are replayed after every reconnect.
type setupFunc func(ch AMQPChannel) error

type Connection struct {
	cfg     Config
	logger  *slog.Logger
	dial    Dialer
	metrics Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conn       AMQPConnection
	ch         AMQPChannel
	connClosed chan *amqp.Error
	chClosed   chan *amqp.Error
	setups     []setupFunc
	closed     bool

	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Dial connects to the broker, retrying ConnectRetries times after the first
// attempt with a fixed ConnectDelay, and declares the exchange. A lost
// connection is re-established in the background with the same budget.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Connection, error) {
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("eventbus: exchange name is required")
	}
	if cfg.ConnectRetries < 0 {
		cfg.ConnectRetries = 0
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	c := &Connection{
		cfg:     cfg,
		logger:  logger,
		dial:    DialAMQP,
		metrics: NoopMetrics{},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.connect(ctx); err != nil {
		c.cancel()
		return nil, err
	}

	go c.watch()

	return c, nil
}

func (c *Connection) Config() Config { return c.cfg }

// Done is closed once the connection is closed or reconnecting gave up.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Err is nil after Close and a *ConnectionError after the retry budget ran out.
func (c *Connection) Err() error {
	<-c.done
	return c.err
}

// BindContext derives a context that is cancelled when parent ends or when the
// connection is gone for good. In the latter case context.Cause reports the
// *ConnectionError.
func (c *Connection) BindContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			err := c.err
			if err == nil {
				err = ErrClosed
			}
			cancel(err)
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn, c.ch = nil, nil
	c.mu.Unlock()

	c.cancel()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.finish(nil)
	return err
}

func (c *Connection) finish(err error) {
	c.doneOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Connection) connect(ctx context.Context) error {
	attempts := c.cfg.ConnectRetries + 1

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = c.open()
		if lastErr == nil {
			c.logger.Info("connected to broker", "exchange", c.cfg.Exchange, "attempt", i)
			return nil
		}

		if i == attempts {
			break
		}

		c.logger.Warn("broker connect failed, retrying",
			"attempt", i, "max", attempts, "delay", c.cfg.ConnectDelay, "error", lastErr)

		select {
		case <-ctx.Done():
			return &ConnectionError{Attempts: i, Err: ctx.Err()}
		case <-c.ctx.Done():
			return &ConnectionError{Attempts: i, Err: ErrClosed}
		case <-time.After(c.cfg.ConnectDelay):
		}
	}

	return &ConnectionError{Attempts: attempts, Err: lastErr}
}

func (c *Connection) open() error {
	conn, err := c.dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if c.cfg.Prefetch > 0 {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set qos: %w", err)
		}
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, ExchangeKind, false, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = conn.Close()
		return ErrClosed
	}

	for _, setup := range c.setups {
		if err := setup(ch); err != nil {
			_ = conn.Close()
			return fmt.Errorf("restore subscription: %w", err)
		}
	}

	c.conn = conn
	c.ch = ch
	c.connClosed = conn.NotifyClose(make(chan *amqp.Error, 1))
	c.chClosed = ch.NotifyClose(make(chan *amqp.Error, 1))

	return nil
}

func (c *Connection) watch() {
	for {
		c.mu.Lock()
		connClosed, chClosed := c.connClosed, c.chClosed
		c.mu.Unlock()

		var reason *amqp.Error
		select {
		case <-c.ctx.Done():
			return
		case reason = <-connClosed:
		case reason = <-chClosed:
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		stale := c.conn
		c.conn, c.ch = nil, nil
		c.mu.Unlock()

		if stale != nil {
			_ = stale.Close()
		}

		c.logger.Warn("broker connection lost, reconnecting", "reason", reason)

		if err := c.connect(c.ctx); err != nil {
			c.mu.Lock()
			closedByUser := c.closed
			c.mu.Unlock()
			if closedByUser {
				return
			}
			c.logger.Error("broker reconnect failed", "error", err)
			c.finish(err)
			return
		}

		c.metrics.Reconnected()
	}
}

// register runs setup on the live channel and keeps it for replay after a
// reconnect.
func (c *Connection) register(setup setupFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.ch == nil {
		return ErrNotConnected
	}
	if err := setup(c.ch); err != nil {
		return err
	}
	c.setups = append(c.setups, setup)
	return nil
}

// withChannel serializes every operation on the single channel.
func (c *Connection) withChannel(fn func(ch AMQPChannel) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.ch == nil {
		return ErrNotConnected
	}
	return fn(c.ch)
}

func (c *Connection) ack(d amqp.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return d.Ack(false)
}

func (c *Connection) nack(d amqp.Delivery, requeue bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return d.Nack(false, requeue)
}
