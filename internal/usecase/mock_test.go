package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/domain/repository"
)

// mockVideoRepository provides a configurable mock for VideoRepository.
type mockVideoRepository struct {
	createFn  func(ctx context.Context, video *model.Video) error
	getByIDFn func(ctx context.Context, id uuid.UUID) (*model.Video, error)
	listFn    func(ctx context.Context) ([]*model.Video, error)
	updateFn  func(ctx context.Context, video *model.Video) error
	deleteFn  func(ctx context.Context, id uuid.UUID) error

	listCount atomic.Int32
}

func (m *mockVideoRepository) Create(ctx context.Context, video *model.Video) error {
	if m.createFn != nil {
		return m.createFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, repository.ErrVideoNotFound
}

func (m *mockVideoRepository) List(ctx context.Context) ([]*model.Video, error) {
	m.listCount.Add(1)
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Video{}, nil
}

func (m *mockVideoRepository) Update(ctx context.Context, video *model.Video) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, video)
	}
	return nil
}

func (m *mockVideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockObjectStorage provides a configurable mock for ObjectStorage.
type mockObjectStorage struct {
	generatePresignedDownloadURLFn func(ctx context.Context, key string, expiry time.Duration) (string, error)
	deleteFn                       func(ctx context.Context, key string) error
	existsFn                       func(ctx context.Context, key string) (bool, error)
	pingFn                         func(ctx context.Context) error
}

func (m *mockObjectStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if m.generatePresignedDownloadURLFn != nil {
		return m.generatePresignedDownloadURLFn(ctx, key, expiry)
	}
	return "http://example.com/download", nil
}

func (m *mockObjectStorage) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockObjectStorage) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishCleanupTaskFn  func(ctx context.Context, task repository.CleanupTask) error
	consumeCleanupTasksFn func(ctx context.Context, handler func(ctx context.Context, task repository.CleanupTask) error) error
}

func (m *mockMessageQueue) PublishCleanupTask(ctx context.Context, task repository.CleanupTask) error {
	if m.publishCleanupTaskFn != nil {
		return m.publishCleanupTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumeCleanupTasks(ctx context.Context, handler func(ctx context.Context, task repository.CleanupTask) error) error {
	if m.consumeCleanupTasksFn != nil {
		return m.consumeCleanupTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// mockSigner provides a configurable mock for URLSigner and counts calls.
type mockSigner struct {
	resolveFn func(ctx context.Context, kind model.AssetKind, identifier string) model.SignedURL
	calls     atomic.Int32
}

func (m *mockSigner) Resolve(ctx context.Context, kind model.AssetKind, identifier string) model.SignedURL {
	m.calls.Add(1)
	if m.resolveFn != nil {
		return m.resolveFn(ctx, kind, identifier)
	}
	return model.SignedURL{URL: "https://signed.example.com/" + model.ObjectKey(kind, identifier)}
}

// mockFileRemover records deleted identifiers.
type mockFileRemover struct {
	deleteFileFn func(ctx context.Context, identifier string) error

	mu      sync.Mutex
	deleted []string
}

func (m *mockFileRemover) DeleteFile(ctx context.Context, identifier string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, identifier)
	m.mu.Unlock()
	if m.deleteFileFn != nil {
		return m.deleteFileFn(ctx, identifier)
	}
	return nil
}

// mockBroadcaster records published scopes.
type mockBroadcaster struct {
	publishFn func(ctx context.Context, scope string) error
	published atomic.Int32

	mu     sync.Mutex
	scopes []string
}

func (m *mockBroadcaster) Publish(ctx context.Context, scope string) error {
	m.published.Add(1)
	m.mu.Lock()
	m.scopes = append(m.scopes, scope)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, scope)
	}
	return nil
}

// mockAssetEvictor records evicted records.
type mockAssetEvictor struct {
	mu      sync.Mutex
	evicted []*model.Video
}

func (m *mockAssetEvictor) Evict(v *model.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evicted = append(m.evicted, v)
}

// fakeClock is a manually advanced time source for TTL caches.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
