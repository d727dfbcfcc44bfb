package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hszk-dev/vidshop/internal/domain/repository"
)

var (
	// ErrInvalidIdentifier is returned for empty identifiers or ones escaping the bucket.
	ErrInvalidIdentifier = errors.New("invalid storage identifier")
)

// StorageService defines the server side of the signing and delete endpoints.
type StorageService interface {
	// SignURL returns a time-limited download URL for the object named by identifier.
	SignURL(ctx context.Context, identifier string) (string, error)

	// DeleteFile removes the object named by identifier. Missing objects are not an error.
	DeleteFile(ctx context.Context, identifier string) error
}

// StorageServiceConfig holds configuration for StorageService.
type StorageServiceConfig struct {
	// URLExpiry must outlive the asset URL cache TTL.
	URLExpiry time.Duration
}

// DefaultStorageServiceConfig returns the default configuration.
func DefaultStorageServiceConfig() StorageServiceConfig {
	return StorageServiceConfig{
		URLExpiry: time.Hour,
	}
}

type storageService struct {
	storage   repository.ObjectStorage
	urlExpiry time.Duration
}

// NewStorageService creates a new StorageService instance.
func NewStorageService(storage repository.ObjectStorage, cfg StorageServiceConfig) StorageService {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultStorageServiceConfig().URLExpiry
	}
	return &storageService{
		storage:   storage,
		urlExpiry: cfg.URLExpiry,
	}
}

// SignURL presigns a GET for identifier.
func (s *storageService) SignURL(ctx context.Context, identifier string) (string, error) {
	key, err := normalizeKey(identifier)
	if err != nil {
		return "", err
	}

	url, err := s.storage.GeneratePresignedDownloadURL(ctx, key, s.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return url, nil
}

// DeleteFile removes identifier from the bucket.
func (s *storageService) DeleteFile(ctx context.Context, identifier string) error {
	key, err := normalizeKey(identifier)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// normalizeKey trims the identifier and rejects keys that are empty or contain
// parent directory segments.
func normalizeKey(identifier string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(identifier), "/")
	if key == "" {
		return "", ErrInvalidIdentifier
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidIdentifier
		}
	}
	return key, nil
}
