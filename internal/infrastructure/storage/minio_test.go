package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/hszk-dev/vidshop/internal/domain/repository"
)

// mockMinioClient implements minioClient interface for testing.
type mockMinioClient struct {
	bucketExistsFunc       func(ctx context.Context, bucketName string) (bool, error)
	presignedGetObjectFunc func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	removeObjectFunc       func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	statObjectFunc         func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

func (m *mockMinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if m.bucketExistsFunc != nil {
		return m.bucketExistsFunc(ctx, bucketName)
	}
	return true, nil
}

func (m *mockMinioClient) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	if m.presignedGetObjectFunc != nil {
		return m.presignedGetObjectFunc(ctx, bucketName, objectName, expiry, reqParams)
	}
	return nil, nil
}

func (m *mockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	if m.removeObjectFunc != nil {
		return m.removeObjectFunc(ctx, bucketName, objectName, opts)
	}
	return nil
}

func (m *mockMinioClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if m.statObjectFunc != nil {
		return m.statObjectFunc(ctx, bucketName, objectName, opts)
	}
	return minio.ObjectInfo{}, nil
}

func TestNewClientWithMinioClient(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		mockClient *mockMinioClient
		wantErr    error
	}{
		{
			name:   "successful initialization",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return true, nil
				},
			},
			wantErr: nil,
		},
		{
			name:   "bucket does not exist",
			bucket: "non-existent-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, nil
				},
			},
			wantErr: repository.ErrBucketNotFound,
		},
		{
			name:   "bucket check error",
			bucket: "test-bucket",
			mockClient: &mockMinioClient{
				bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
					return false, errors.New("connection refused")
				},
			},
			wantErr: errors.New("failed to check bucket existence"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newClientWithMinioClient(context.Background(), tt.mockClient, tt.mockClient, tt.bucket)

			if tt.wantErr != nil {
				if err == nil {
					t.Errorf("newClientWithMinioClient() expected error, got nil")
					return
				}
				if !errors.Is(err, tt.wantErr) && !strings.Contains(err.Error(), tt.wantErr.Error()) {
					t.Errorf("newClientWithMinioClient() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("newClientWithMinioClient() unexpected error = %v", err)
				return
			}

			if client.Bucket() != tt.bucket {
				t.Errorf("client.Bucket() = %v, want %v", client.Bucket(), tt.bucket)
			}
		})
	}
}

func TestClient_GeneratePresignedDownloadURL(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		expiry     time.Duration
		mockClient *mockMinioClient
		wantURL    string
		wantErr    bool
	}{
		{
			name:   "successful presigned download URL generation",
			key:    "thumbnails/cover.jpg",
			expiry: 1 * time.Hour,
			mockClient: &mockMinioClient{
				presignedGetObjectFunc: func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
					if bucketName != "media" || objectName != "thumbnails/cover.jpg" {
						t.Errorf("unexpected target %s/%s", bucketName, objectName)
					}
					if expiry != time.Hour {
						t.Errorf("expiry = %v, want 1h", expiry)
					}
					if got := reqParams.Get("response-cache-control"); got != "private, max-age=3600" {
						t.Errorf("response-cache-control = %q", got)
					}
					if got := reqParams.Get("response-content-type"); got != "image/jpeg" {
						t.Errorf("response-content-type = %q", got)
					}
					u, _ := url.Parse("http://localhost:9000/media/thumbnails/cover.jpg?X-Amz-Signature=xyz789")
					return u, nil
				},
			},
			wantURL: "http://localhost:9000/media/thumbnails/cover.jpg?X-Amz-Signature=xyz789",
			wantErr: false,
		},
		{
			name:   "error generating presigned URL",
			key:    "thumbnails/cover.jpg",
			expiry: 1 * time.Hour,
			mockClient: &mockMinioClient{
				presignedGetObjectFunc: func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
					return nil, errors.New("signing error")
				},
			},
			wantURL: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{
				client:  &mockMinioClient{},
				signing: tt.mockClient,
				bucket:  "media",
			}

			got, err := client.GeneratePresignedDownloadURL(context.Background(), tt.key, tt.expiry)

			if (err != nil) != tt.wantErr {
				t.Errorf("GeneratePresignedDownloadURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got != tt.wantURL {
				t.Errorf("GeneratePresignedDownloadURL() = %v, want %v", got, tt.wantURL)
			}
		})
	}
}

func TestClient_Delete(t *testing.T) {
	tests := []struct {
		name       string
		mockClient *mockMinioClient
		wantErr    bool
	}{
		{
			name:       "successful delete",
			mockClient: &mockMinioClient{},
			wantErr:    false,
		},
		{
			name: "missing object is not an error",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return minio.ErrorResponse{Code: "NoSuchKey"}
				},
			},
			wantErr: false,
		},
		{
			name: "delete error",
			mockClient: &mockMinioClient{
				removeObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
					return errors.New("access denied")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{client: tt.mockClient, signing: tt.mockClient, bucket: "media"}

			err := client.Delete(context.Background(), "videos/clip.mp4")
			if (err != nil) != tt.wantErr {
				t.Errorf("Delete() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Exists(t *testing.T) {
	tests := []struct {
		name       string
		mockClient *mockMinioClient
		want       bool
		wantErr    bool
	}{
		{
			name:       "object exists",
			mockClient: &mockMinioClient{},
			want:       true,
		},
		{
			name: "object missing",
			mockClient: &mockMinioClient{
				statObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}
				},
			},
			want: false,
		},
		{
			name: "stat error",
			mockClient: &mockMinioClient{
				statObjectFunc: func(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
					return minio.ObjectInfo{}, errors.New("timeout")
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &Client{client: tt.mockClient, signing: tt.mockClient, bucket: "media"}

			got, err := client.Exists(context.Background(), "videos/clip.mp4")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Exists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_Ping(t *testing.T) {
	ok := &Client{client: &mockMinioClient{}, bucket: "media"}
	if err := ok.Ping(context.Background()); err != nil {
		t.Errorf("Ping() unexpected error: %v", err)
	}

	failing := &Client{
		client: &mockMinioClient{
			bucketExistsFunc: func(ctx context.Context, bucketName string) (bool, error) {
				return false, errors.New("connection refused")
			},
		},
		bucket: "media",
	}
	if err := failing.Ping(context.Background()); err == nil {
		t.Error("Ping() expected error, got nil")
	}
}
