package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialp/internal/cache"
	"socialp/internal/config"
	"socialp/internal/eventbus"
	"socialp/internal/infrastructure/cloudinary"
	"socialp/internal/infrastructure/kafka"
	"socialp/internal/infrastructure/postgres"
	"socialp/internal/infrastructure/redis"

	pgxpool "github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	go_redis "github.com/redis/go-redis/v9"
)

// Factory builds the infrastructure clients of one service lazily and owns
// their shutdown.
type Factory struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    prometheus.Registerer

	pgPool    *pgxpool.Pool
	redisCli  *go_redis.Client
	cache     *cache.Cache
	bus       *eventbus.Connection
	publisher *eventbus.Publisher
	dlWriter  *kafka.DeadLetterWriter
	dlReader  *kafka.DeadLetterReader
}

func NewFactory(cfg *config.Config, logger *slog.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		logger: logger,
		reg:    prometheus.DefaultRegisterer,
	}
}

func (f *Factory) Registerer() prometheus.Registerer {
	return f.reg
}

func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if f.pgPool != nil {
		return f.pgPool, nil
	}

	var pool *pgxpool.Pool
	var err error

	// Retry connection up to 5 times
	for i := 0; i < 5; i++ {
		pool, err = postgres.NewClient(ctx, f.postgresConfig())
		if err == nil {
			break
		}
		f.logger.Warn("failed to connect to postgres, retrying in 2s", "attempt", i+1, "max_attempts", 5, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to init postgres after retries: %w", err)
	}

	f.pgPool = pool
	return pool, nil
}

func (f *Factory) postgresConfig() postgres.Config {
	return postgres.Config{
		Host:     f.cfg.Postgres.Host,
		Port:     f.cfg.Postgres.Port,
		User:     f.cfg.Postgres.User,
		Password: f.cfg.Postgres.Password,
		DBName:   f.cfg.Postgres.DBName,
	}
}

func (f *Factory) TxManager(ctx context.Context) (*postgres.TxManager, error) {
	pool, err := f.Postgres(ctx)
	if err != nil {
		return nil, err
	}
	return postgres.NewTxManager(pool), nil
}

func (f *Factory) Redis(ctx context.Context) (*go_redis.Client, error) {
	if f.redisCli != nil {
		return f.redisCli, nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Addr:     f.cfg.Redis.Addr,
		Password: f.cfg.Redis.Password,
		DB:       f.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init redis: %w", err)
	}

	f.redisCli = client
	return client, nil
}

func (f *Factory) Cache(ctx context.Context) (*cache.Cache, error) {
	if f.cache != nil {
		return f.cache, nil
	}

	client, err := f.Redis(ctx)
	if err != nil {
		return nil, err
	}

	f.cache = cache.New(client, f.logger.With("component", "cache"), f.cfg.Cache.ScanBatch)
	return f.cache, nil
}

// EventBus dials RabbitMQ once per process. Its metrics go to the default
// registry so the service /metrics endpoint exposes them.
func (f *Factory) EventBus(ctx context.Context) (*eventbus.Connection, error) {
	if f.bus != nil {
		return f.bus, nil
	}

	rmq := f.cfg.RabbitMQ
	conn, err := eventbus.Dial(ctx, eventbus.Config{
		URL:             rmq.URL,
		Exchange:        rmq.Exchange,
		ConnectRetries:  rmq.ConnectRetries,
		ConnectDelay:    rmq.ConnectDelay,
		Prefetch:        rmq.Prefetch,
		PublishTimeout:  rmq.PublishTimeout,
		MaxRedeliveries: rmq.MaxRedeliveries,
		RetryBackoff:    rmq.RetryBackoff,
		MaxRetryBackoff: rmq.MaxRetryBackoff,
	}, f.logger.With("component", "eventbus"), eventbus.WithMetrics(eventbus.NewPrometheusMetrics(f.reg)))
	if err != nil {
		return nil, fmt.Errorf("failed to init rabbitmq: %w", err)
	}

	f.bus = conn
	return conn, nil
}

func (f *Factory) Publisher(ctx context.Context) (*eventbus.Publisher, error) {
	if f.publisher != nil {
		return f.publisher, nil
	}

	conn, err := f.EventBus(ctx)
	if err != nil {
		return nil, err
	}

	f.publisher = eventbus.NewPublisher(conn, f.logger.With("component", "publisher"))
	return f.publisher, nil
}

// Subscriber parks exhausted messages in Kafka when it is enabled and only
// logs them otherwise.
func (f *Factory) Subscriber(ctx context.Context) (*eventbus.Subscriber, error) {
	conn, err := f.EventBus(ctx)
	if err != nil {
		return nil, err
	}

	var sink eventbus.DeadLetterSink = eventbus.NewLogSink(f.logger.With("component", "dlq"))
	if f.cfg.Kafka.Enabled {
		sink = f.DeadLetterWriter()
	}

	return eventbus.NewSubscriber(conn, f.logger.With("component", "subscriber"), eventbus.WithDeadLetterSink(sink)), nil
}

func (f *Factory) kafkaConfig() kafka.Config {
	return kafka.Config{
		Brokers: f.cfg.Kafka.Brokers,
		Topic:   f.cfg.Kafka.DeadLetterTopic,
		GroupID: f.cfg.Kafka.GroupID,
	}
}

func (f *Factory) DeadLetterWriter() *kafka.DeadLetterWriter {
	if f.dlWriter == nil {
		f.dlWriter = kafka.NewDeadLetterWriter(f.kafkaConfig())
	}
	return f.dlWriter
}

func (f *Factory) DeadLetterReader() *kafka.DeadLetterReader {
	if f.dlReader == nil {
		f.dlReader = kafka.NewDeadLetterReader(f.kafkaConfig())
	}
	return f.dlReader
}

func (f *Factory) Cloudinary() (*cloudinary.Client, error) {
	c := f.cfg.Cloudinary
	client, err := cloudinary.NewClient(cloudinary.Config{
		CloudName: c.CloudName,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		Folder:    c.Folder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init cloudinary: %w", err)
	}
	return client, nil
}

// Close releases everything in reverse dependency order. The bus goes first
// so in-flight handlers stop before their stores disappear.
func (f *Factory) Close() {
	if f.bus != nil {
		if err := f.bus.Close(); err != nil {
			f.logger.Warn("close rabbitmq", "error", err)
		}
	}
	if f.dlWriter != nil {
		if err := f.dlWriter.Close(); err != nil {
			f.logger.Warn("close kafka writer", "error", err)
		}
	}
	if f.dlReader != nil {
		if err := f.dlReader.Close(); err != nil {
			f.logger.Warn("close kafka reader", "error", err)
		}
	}
	if f.pgPool != nil {
		f.pgPool.Close()
	}
	if f.redisCli != nil {
		f.redisCli.Close()
	}
}
