package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// s3API is the subset of the S3 client used for asset delivery.
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Presigner is satisfied by *s3.PresignClient.
type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config holds configuration for the AWS SDK backed storage client.
type S3Config struct {
	Endpoint     string // Optional: custom endpoint for S3-compatible providers
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
}

// S3Client implements repository.ObjectStorage on the AWS SDK.
// It serves deployments whose bucket lives on AWS S3 or a provider that is
// not reachable through the MinIO client.
type S3Client struct {
	api       s3API
	presigner s3Presigner
	bucket    string
}

// Compile-time verification that S3Client implements repository.ObjectStorage.
var _ repository.ObjectStorage = (*S3Client)(nil)

// NewS3Client creates an S3 client and verifies the bucket is reachable.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3ClientWithAPI(ctx, client, s3.NewPresignClient(client), cfg.Bucket)
}

// newS3ClientWithAPI is used for dependency injection in tests.
func newS3ClientWithAPI(ctx context.Context, api s3API, presigner s3Presigner, bucket string) (*S3Client, error) {
	if _, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", repository.ErrBucketNotFound, bucket)
		}
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	return &S3Client{api: api, presigner: presigner, bucket: bucket}, nil
}

// GeneratePresignedDownloadURL creates a presigned GET URL valid for expiry.
func (c *S3Client) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	h := headersFor(key, expiry)
	input := &s3.GetObjectInput{
		Bucket:               aws.String(c.bucket),
		Key:                  aws.String(key),
		ResponseCacheControl: aws.String(h.CacheControl),
	}
	if h.ContentType != "" {
		input.ResponseContentType = aws.String(h.ContentType)
	}

	req, err := c.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiry))
	observe(metrics.StorageDriverS3, metrics.StorageOpPresign, err)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return req.URL, nil
}

// Delete removes an object. S3 treats deleting a missing key as success.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	observe(metrics.StorageDriverS3, metrics.StorageOpDelete, err)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists checks if an object exists in the bucket.
func (c *S3Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			observe(metrics.StorageDriverS3, metrics.StorageOpExists, nil)
			return false, nil
		}
		observe(metrics.StorageDriverS3, metrics.StorageOpExists, err)
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	observe(metrics.StorageDriverS3, metrics.StorageOpExists, nil)
	return true, nil
}

// Ping verifies the bucket is still reachable.
func (c *S3Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	observe(metrics.StorageDriverS3, metrics.StorageOpPing, err)
	if err != nil {
		return fmt.Errorf("failed to ping s3: %w", err)
	}
	return nil
}

// Bucket returns the configured bucket name.
func (c *S3Client) Bucket() string {
	return c.bucket
}
