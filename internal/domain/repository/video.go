package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hszk-dev/vidshop/internal/domain/model"
)

// VideoRepository defines the interface for catalog persistence operations.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type VideoRepository interface {
	// Create persists a new catalog record.
	// Returns ErrDuplicateVideo if the record already exists.
	Create(ctx context.Context, video *model.Video) error

	// GetByID retrieves a record by its unique identifier.
	// Returns nil and ErrVideoNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// List retrieves every catalog record, newest first.
	// Returns empty slice if the catalog is empty.
	List(ctx context.Context) ([]*model.Video, error)

	// Update persists changes to an existing record.
	// Returns ErrVideoNotFound if the record does not exist.
	Update(ctx context.Context, video *model.Video) error

	// Delete removes a record.
	// Returns ErrVideoNotFound if the record does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
