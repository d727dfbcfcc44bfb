package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// minioClient is the subset of *minio.Client used for asset delivery.
type minioClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// ClientConfig holds configuration for the MinIO client.
type ClientConfig struct {
	Endpoint string
	// PublicEndpoint is the host browsers reach; presigned URLs are signed for it.
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	// Region avoids a bucket-location lookup before every presign.
	Region string
	UseSSL bool
}

// Client implements repository.ObjectStorage on MinIO.
type Client struct {
	client  minioClient
	signing minioClient
	bucket  string
}

var _ repository.ObjectStorage = (*Client)(nil)

// NewClient connects to MinIO and fails fast when the bucket is missing.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	client, err := newMinio(cfg.Endpoint, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	var signing minioClient = client
	if cfg.PublicEndpoint != "" {
		if signing, err = newMinio(cfg.PublicEndpoint, cfg); err != nil {
			return nil, fmt.Errorf("failed to create public minio client: %w", err)
		}
	}

	return newClientWithMinioClient(ctx, client, signing, cfg.Bucket)
}

func newMinio(endpoint string, cfg ClientConfig) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

func newClientWithMinioClient(ctx context.Context, client, signing minioClient, bucket string) (*Client, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
	}

	return &Client{client: client, signing: signing, bucket: bucket}, nil
}

// GeneratePresignedDownloadURL presigns a GET for key with delivery headers
// matching the URL lifetime.
func (c *Client) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	h := headersFor(key, expiry)
	params := url.Values{}
	params.Set("response-cache-control", h.CacheControl)
	if h.ContentType != "" {
		params.Set("response-content-type", h.ContentType)
	}

	u, err := c.signing.PresignedGetObject(ctx, c.bucket, key, expiry, params)
	observe(metrics.StorageDriverMinIO, metrics.StorageOpPresign, err)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return u.String(), nil
}

// Delete removes key; a missing key counts as deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if isNoSuchKey(err) {
		err = nil
	}
	observe(metrics.StorageDriverMinIO, metrics.StorageOpDelete, err)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether key is present in the bucket.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if isNoSuchKey(err) {
		observe(metrics.StorageDriverMinIO, metrics.StorageOpExists, nil)
		return false, nil
	}
	observe(metrics.StorageDriverMinIO, metrics.StorageOpExists, err)
	if err != nil {
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

// Ping verifies the bucket is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	observe(metrics.StorageDriverMinIO, metrics.StorageOpPing, err)
	if err != nil {
		return fmt.Errorf("failed to ping minio: %w", err)
	}
	return nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

func isNoSuchKey(err error) bool {
	return err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey"
}
