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
	"socialp/internal/eventbus"
	"socialp/internal/infrastructure/postgres"
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
		With("service", "post-service")
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
	if err := postgres.EnsureSchema(ctx, pgPool, postgres.PostSchema); err != nil {
		logger.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	postCache, err := infraFactory.Cache(ctx)
	if err != nil {
		logger.Error("failed to init cache", "error", err)
		os.Exit(1)
	}

	bus, err := infraFactory.EventBus(ctx)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	publisher := eventbus.NewPublisher(bus, logger.With("component", "publisher"))

	// Repositories
	postRepo := postgres.NewPostRepository(pgPool)

	// UseCases
	createPostUC := usecase.NewCreatePost(postRepo, postCache, publisher, logger)
	getPostUC := usecase.NewGetPost(postRepo, postCache, cfg.Cache.PostTTL)
	listPostsUC := usecase.NewListPosts(postRepo, postCache, cfg.Cache.ListTTL)
	deletePostUC := usecase.NewDeletePost(postRepo, postCache, publisher, logger)

	handlers := api.NewPostHandlers(createPostUC, getPostUC, listPostsUC, deletePostUC, logger)
	apiHandler := api.NewPostRouter(handlers, redisClient, logger)

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
		// Every later event would be dropped; let the orchestrator restart us.
		logger.Error("rabbitmq connection lost for good", "error", bus.Err())
		exitCode = 1
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
	if exitCode != 0 {
		infraFactory.Close()
		os.Exit(exitCode)
	}
}
