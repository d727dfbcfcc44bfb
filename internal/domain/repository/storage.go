package repository

import (
	"context"
	"time"
)

// ObjectStorage is the bucket holding video and thumbnail binaries.
// Keys are full object keys such as "videos/clip.mp4".
type ObjectStorage interface {
	// GeneratePresignedDownloadURL returns a GET URL for key valid for expiry.
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks that the bucket is reachable.
	Ping(ctx context.Context) error
}
