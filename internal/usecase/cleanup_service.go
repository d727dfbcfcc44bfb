package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

const (
	// DefaultMaxRetries is the default number of attempts before a cleanup task is dropped.
	DefaultMaxRetries = 3
)

// CleanupServiceConfig holds configuration for CleanupService.
type CleanupServiceConfig struct {
	// MaxRetries is the maximum number of retry attempts before the task is dropped.
	MaxRetries int
}

// DefaultCleanupServiceConfig returns the default configuration.
func DefaultCleanupServiceConfig() CleanupServiceConfig {
	return CleanupServiceConfig{
		MaxRetries: DefaultMaxRetries,
	}
}

// CleanupService defines the interface for removing orphaned backing binaries.
type CleanupService interface {
	// ProcessTask handles a cleanup task from the message queue.
	// Returns nil on success or permanent failure (max retries exceeded).
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.CleanupTask) error
}

type cleanupService struct {
	storage    repository.ObjectStorage
	maxRetries int
}

// NewCleanupService creates a new CleanupService instance.
func NewCleanupService(storage repository.ObjectStorage, cfg CleanupServiceConfig) CleanupService {
	return &cleanupService{
		storage:    storage,
		maxRetries: cfg.MaxRetries,
	}
}

// ProcessTask deletes the task's object if it still exists.
func (s *cleanupService) ProcessTask(ctx context.Context, task repository.CleanupTask) error {
	if task.RetryCount >= s.maxRetries {
		slog.Error("dropping cleanup task after max retries",
			"video_id", task.VideoID,
			"object_key", task.ObjectKey,
			"retry_count", task.RetryCount,
		)
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupDropped).Inc()
		return nil
	}

	if _, err := normalizeKey(task.ObjectKey); err != nil {
		slog.Error("dropping cleanup task with invalid object key",
			"video_id", task.VideoID,
			"object_key", task.ObjectKey,
		)
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupDropped).Inc()
		return nil
	}

	exists, err := s.storage.Exists(ctx, task.ObjectKey)
	if err != nil {
		metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupRetried).Inc()
		return fmt.Errorf("check object: %w", err)
	}

	if exists {
		if err := s.storage.Delete(ctx, task.ObjectKey); err != nil {
			metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupRetried).Inc()
			return fmt.Errorf("delete object: %w", err)
		}
	}

	slog.Info("cleanup task completed",
		"video_id", task.VideoID,
		"object_key", task.ObjectKey,
		"already_gone", !exists,
	)
	metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupDeleted).Inc()
	return nil
}
