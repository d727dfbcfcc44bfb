package repository

import (
	"context"

	"github.com/google/uuid"
)

// CleanupTask represents a request to remove an orphaned object from storage.
type CleanupTask struct {
	VideoID    uuid.UUID `json:"video_id"`
	ObjectKey  string    `json:"object_key"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for message queue operations.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishCleanupTask sends a cleanup task to the queue.
	// Used by the API server when direct deletion of a backing binary fails.
	PublishCleanupTask(ctx context.Context, task CleanupTask) error

	// ConsumeCleanupTasks starts consuming cleanup tasks from the queue.
	// The handler is called for each received task with a context that is not
	// cancelled with ctx, so a task in progress at shutdown runs to completion.
	// Blocks until the context is cancelled or the channel closes.
	// Used by the worker service.
	ConsumeCleanupTasks(ctx context.Context, handler func(ctx context.Context, task CleanupTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
