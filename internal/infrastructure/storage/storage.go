// Package storage implements repository.ObjectStorage on MinIO and on AWS S3.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	"github.com/hszk-dev/vidshop/internal/config"
	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// New connects to the object store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (repository.ObjectStorage, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		client, err := NewS3Client(ctx, S3Config{
			Endpoint:     cfg.Endpoint,
			Region:       cfg.Region,
			AccessKey:    cfg.AccessKey,
			SecretKey:    cfg.SecretKey,
			Bucket:       cfg.Bucket,
			UsePathStyle: cfg.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.StorageDriverMinIO, "":
		client, err := NewClient(ctx, ClientConfig{
			Endpoint:       cfg.Endpoint,
			PublicEndpoint: cfg.PublicEndpoint,
			AccessKey:      cfg.AccessKey,
			SecretKey:      cfg.SecretKey,
			Bucket:         cfg.Bucket,
			Region:         cfg.Region,
			UseSSL:         cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// deliveryHeaders are the response overrides baked into every presigned URL.
// Browsers may cache the object for as long as the URL stays valid.
type deliveryHeaders struct {
	CacheControl string
	ContentType  string
}

func headersFor(key string, expiry time.Duration) deliveryHeaders {
	return deliveryHeaders{
		CacheControl: fmt.Sprintf("private, max-age=%d", int(expiry.Seconds())),
		ContentType:  mime.TypeByExtension(path.Ext(key)),
	}
}

func observe(driver, op string, err error) {
	result := metrics.StorageResultSuccess
	if err != nil {
		result = metrics.StorageResultError
	}
	metrics.StorageOperationsTotal.WithLabelValues(driver, op, result).Inc()
}
