package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"socialp/internal/application/factories/infrastructure"
	"socialp/internal/config"
	"socialp/internal/eventbus"
	"socialp/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	maxMessages := flag.Int("max", 0, "stop after this many dead letters (0 = run until interrupted)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})).
		With("service", "redrive")
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := worker.ServeMetrics(metricsCtx, ":"+cfg.Metrics.Port, mux, logger); err != nil {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	bus, err := infraFactory.EventBus(ctx)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	publisher := eventbus.NewPublisher(bus, logger.With("component", "publisher"))

	reader := infraFactory.DeadLetterReader()
	logger.Info("reading dead letters", "topic", cfg.Kafka.DeadLetterTopic, "group_id", cfg.Kafka.GroupID)

	// Publishing into a dead connection would retry forever.
	runCtx, stopRun := bus.BindContext(ctx)
	defer stopRun()

	exitCode := 0
	r := worker.NewRedriver(reader, publisher, infraFactory.Registerer(), logger)
	if err := r.Run(runCtx, *maxMessages); err != nil {
		logger.Error("redrive stopped with error", "error", err)
		exitCode = 1
	}

	select {
	case <-bus.Done():
		if ctx.Err() == nil {
			logger.Error("rabbitmq connection lost for good", "error", bus.Err())
			exitCode = 1
		}
	default:
	}

	stopMetrics()
	<-metricsDone

	logger.Info("redrive exited")
	if exitCode != 0 {
		infraFactory.Close()
		os.Exit(exitCode)
	}
}
