package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialp/internal/api"
	"socialp/internal/application/factories/infrastructure"
	"socialp/internal/config"
	domainEvent "socialp/internal/domain/event"
	"socialp/internal/eventbus"
	"socialp/internal/infrastructure/postgres"
	"socialp/internal/projection"
	"socialp/internal/usecase"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})).
		With("service", "search-service")
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, logger)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if err := postgres.EnsureSchema(ctx, pgPool, postgres.SearchSchema); err != nil {
		logger.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}

	searchCache, err := infraFactory.Cache(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	txManager, err := infraFactory.TxManager(ctx)
	if err != nil {
		logger.Error("failed to init transactions", "error", err)
		os.Exit(1)
	}
	searchRepo := postgres.NewSearchRepository(pgPool, txManager)

	// Projection
	bus, err := infraFactory.EventBus(ctx)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	subscriber, err := infraFactory.Subscriber(ctx)
	if err != nil {
		logger.Error("failed to init subscriber", "error", err)
		os.Exit(1)
	}

	router := eventbus.NewRouter(logger)
	projection.NewSearchProjector(searchRepo, searchCache, logger).Register(router)

	if err := subscriber.Subscribe(ctx, domainEvent.PostAll, router.Dispatch); err != nil {
		logger.Error("failed to subscribe", "pattern", domainEvent.PostAll, "error", err)
		os.Exit(1)
	}

	// REST API
	searchPostsUC := usecase.NewSearchPosts(searchRepo, searchCache, cfg.Cache.SearchTTL)
	apiHandler := api.NewSearchRouter(api.NewSearchHandlers(searchPostsUC, logger), logger)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: apiHandler,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			cancel()
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case <-bus.Done():
		// Without the bus the index silently goes stale; let the orchestrator restart us.
		logger.Error("rabbitmq connection lost for good", "error", bus.Err())
		exitCode = 1
	}

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	subscriber.Wait()

	logger.Info("Server exiting")
	if exitCode != 0 {
		infraFactory.Close()
		os.Exit(exitCode)
	}
}
