package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/vidshop/internal/config"
	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/queue"
	"github.com/hszk-dev/vidshop/internal/infrastructure/storage"
	"github.com/hszk-dev/vidshop/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	objectStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}
	logger.Info("connected to object storage", slog.String("driver", cfg.Storage.Driver))

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.Consumer = "vidshop-cleanup-worker"
	queueCfg.RetryDelay = cfg.Worker.RetryDelay
	queueCfg.TaskTimeout = cfg.Worker.TaskTimeout
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	cleanupSvc := usecase.NewCleanupService(objectStorage, usecase.CleanupServiceConfig{
		MaxRetries: cfg.Worker.MaxRetries,
	})

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// The consumer handles one delivery at a time, so it returns only after
	// the task in progress has finished.
	consumerDone := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		defer close(consumerDone)
		logger.Info("starting worker, consuming cleanup tasks")
		err := queueClient.ConsumeCleanupTasks(ctx, func(taskCtx context.Context, task repository.CleanupTask) error {
			if err := cleanupSvc.ProcessTask(taskCtx, task); err != nil {
				logger.Warn("cleanup task failed",
					slog.String("video_id", task.VideoID.String()),
					slog.String("object_key", task.ObjectKey),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new messages
	cancel()

	select {
	case <-consumerDone:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("worker stopped")
	return nil
}
