package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/domain/repository"
	"github.com/hszk-dev/vidshop/internal/infrastructure/cache"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

const (
	// catalogSnapshotKey is the single key under which the full listing is cached.
	catalogSnapshotKey = "catalog:all"

	// CatalogInvalidationScope is the scope broadcast to other replicas on mutation.
	CatalogInvalidationScope = "catalog"

	// assetScopePrefix prefixes scopes that name a single cached asset URL.
	assetScopePrefix = "assets:"

	// snapshotFetchTimeout bounds a shared store read, which outlives the
	// request that started it.
	snapshotFetchTimeout = 30 * time.Second
)

// CatalogService defines the interface for catalog operations backed by the snapshot cache.
type CatalogService interface {
	// ListVideos returns the catalog in the requested order.
	// A non-empty query always reads the store and filters by title and description.
	ListVideos(ctx context.Context, sort model.SortOption, query string) ([]*model.Video, error)

	// GetVideo retrieves a single record, preferring a fresh snapshot.
	GetVideo(ctx context.Context, id uuid.UUID) (*model.Video, error)

	// CreateVideo validates and persists a new record.
	CreateVideo(ctx context.Context, input model.VideoInput) (*model.Video, error)

	// UpdateVideo overwrites the mutable fields of an existing record.
	UpdateVideo(ctx context.Context, id uuid.UUID, input model.VideoInput) (*model.Video, error)

	// DeleteVideo removes a record and cleans up its backing binaries.
	// Binary cleanup failures never fail the deletion.
	DeleteVideo(ctx context.Context, id uuid.UUID) error

	// Invalidate drops the local snapshot and notifies other replicas.
	Invalidate(ctx context.Context)

	// InvalidateLocal drops the local snapshot only.
	InvalidateLocal()
}

// AssetInvalidationScope is the scope that evicts the cached URL of objectKey.
func AssetInvalidationScope(objectKey string) string {
	return assetScopePrefix + objectKey
}

// ParseAssetScope returns the object key named by an asset scope.
func ParseAssetScope(scope string) (string, bool) {
	key, ok := strings.CutPrefix(scope, assetScopePrefix)
	return key, ok && key != ""
}

// InvalidationBroadcaster notifies other replicas that a cached scope changed.
type InvalidationBroadcaster interface {
	Publish(ctx context.Context, scope string) error
}

// AssetEvictor drops cached asset URLs of a record.
type AssetEvictor interface {
	Evict(v *model.Video)
}

// FileRemover deletes a backing binary through the delete endpoint.
type FileRemover interface {
	DeleteFile(ctx context.Context, identifier string) error
}

// CatalogOption configures optional collaborators of the catalog service.
type CatalogOption func(*catalogService)

// WithBroadcaster publishes invalidations to other replicas.
func WithBroadcaster(b InvalidationBroadcaster) CatalogOption {
	return func(s *catalogService) { s.broadcaster = b }
}

// WithAssetEvictor evicts cached asset URLs when records change or disappear.
func WithAssetEvictor(e AssetEvictor) CatalogOption {
	return func(s *catalogService) { s.assets = e }
}

// WithFileRemover deletes backing binaries of removed records.
func WithFileRemover(f FileRemover) CatalogOption {
	return func(s *catalogService) { s.files = f }
}

// WithCleanupQueue hands failed binary deletions to the cleanup worker.
func WithCleanupQueue(q repository.MessageQueue) CatalogOption {
	return func(s *catalogService) { s.queue = q }
}

type catalogService struct {
	repo      repository.VideoRepository
	snapshots *cache.TTL[string, []*model.Video]
	sfGroup   singleflight.Group

	// generation is bumped on every invalidation; a fetch that started in an
	// older generation must not store its result.
	generation atomic.Uint64

	broadcaster InvalidationBroadcaster
	assets      AssetEvictor
	files       FileRemover
	queue       repository.MessageQueue
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(
	repo repository.VideoRepository,
	snapshots *cache.TTL[string, []*model.Video],
	opts ...CatalogOption,
) CatalogService {
	s := &catalogService{
		repo:      repo,
		snapshots: snapshots,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListVideos returns a sorted copy of the catalog.
func (s *catalogService) ListVideos(ctx context.Context, sort model.SortOption, query string) ([]*model.Video, error) {
	if strings.TrimSpace(query) != "" {
		videos, err := s.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("search videos: %w", err)
		}
		result := model.FilterVideos(videos, query)
		model.SortVideos(result, sort)
		return result, nil
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := model.CloneVideos(snapshot)
	model.SortVideos(result, sort)
	return result, nil
}

// GetVideo serves a record from a fresh snapshot, falling back to the store.
func (s *catalogService) GetVideo(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	if snapshot, ok := s.snapshots.Get(catalogSnapshotKey); ok {
		for _, v := range snapshot {
			if v.ID == id {
				return v.Clone(), nil
			}
		}
	}

	return s.repo.GetByID(ctx, id)
}

// CreateVideo persists a new record and refreshes the snapshot.
func (s *catalogService) CreateVideo(ctx context.Context, input model.VideoInput) (*model.Video, error) {
	video, err := model.NewVideo(input)
	if err != nil {
		return nil, err
	}

	s.InvalidateLocal()
	if err := s.repo.Create(ctx, video); err != nil {
		s.Invalidate(ctx)
		return nil, fmt.Errorf("create video: %w", err)
	}
	s.afterWrite(ctx)

	return video.Clone(), nil
}

// UpdateVideo overwrites an existing record and refreshes the snapshot.
func (s *catalogService) UpdateVideo(ctx context.Context, id uuid.UUID, input model.VideoInput) (*model.Video, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.InvalidateLocal()

	video, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.Invalidate(ctx)
		return nil, err
	}
	previous := video.Clone()

	if err := video.Apply(input); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, video); err != nil {
		s.Invalidate(ctx)
		return nil, fmt.Errorf("update video: %w", err)
	}

	if previous.VideoKey != video.VideoKey || previous.ThumbnailKey != video.ThumbnailKey {
		s.evictAssets(ctx, previous)
	}
	s.afterWrite(ctx)

	return video.Clone(), nil
}

// DeleteVideo removes a record, then its binaries.
func (s *catalogService) DeleteVideo(ctx context.Context, id uuid.UUID) error {
	s.InvalidateLocal()

	video, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.Invalidate(ctx)
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.Invalidate(ctx)
		return fmt.Errorf("delete video: %w", err)
	}

	s.evictAssets(ctx, video)
	s.removeBinaries(ctx, video)
	s.afterWrite(ctx)

	return nil
}

// Invalidate drops the local snapshot and tells other replicas to do the same.
func (s *catalogService) Invalidate(ctx context.Context) {
	s.InvalidateLocal()

	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, CatalogInvalidationScope); err != nil {
		slog.Warn("failed to broadcast catalog invalidation",
			"error", err,
		)
	}
}

// InvalidateLocal drops the local snapshot. In-flight fetches started before
// this call are detached so later readers never join them.
func (s *catalogService) InvalidateLocal() {
	s.generation.Add(1)
	s.sfGroup.Forget(catalogSnapshotKey)
	s.snapshots.Invalidate(catalogSnapshotKey)
}

// snapshot returns the cached listing or fetches it once for all concurrent callers.
func (s *catalogService) snapshot(ctx context.Context) ([]*model.Video, error) {
	if cached, ok := s.snapshots.Get(catalogSnapshotKey); ok {
		return cached, nil
	}

	// The read runs detached from any single caller so one disconnect does
	// not fail everyone waiting on it. Each caller still honours its own ctx.
	ch := s.sfGroup.DoChan(catalogSnapshotKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotFetchTimeout)
		defer cancel()
		return s.fetchSnapshot(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupCatalog, metrics.SingleflightShared).Inc()
		} else {
			metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupCatalog, metrics.SingleflightInitiated).Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*model.Video), nil
	}
}

// fetchSnapshot reads the whole catalog and stores it unless an
// invalidation happened while the read was in flight.
func (s *catalogService) fetchSnapshot(ctx context.Context) ([]*model.Video, error) {
	gen := s.generation.Load()

	videos, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	if s.generation.Load() == gen {
		s.snapshots.Set(catalogSnapshotKey, videos)
	}
	return videos, nil
}

// afterWrite invalidates once more and eagerly reloads the snapshot so the
// next read observes the write.
func (s *catalogService) afterWrite(ctx context.Context) {
	s.Invalidate(ctx)

	if _, err := s.fetchSnapshot(ctx); err != nil {
		slog.Warn("failed to refresh catalog after write",
			"error", err,
		)
	}
}

// evictAssets drops the record's cached asset URLs here and on other replicas.
func (s *catalogService) evictAssets(ctx context.Context, video *model.Video) {
	if s.assets != nil {
		s.assets.Evict(video)
	}
	if s.broadcaster == nil {
		return
	}
	for _, key := range objectKeys(video) {
		if err := s.broadcaster.Publish(ctx, AssetInvalidationScope(key)); err != nil {
			slog.Warn("failed to broadcast asset invalidation",
				"object_key", key,
				"error", err,
			)
		}
	}
}

// objectKeys returns the non-empty storage keys of the record's binaries.
func objectKeys(video *model.Video) []string {
	var keys []string
	for _, key := range []string{
		model.ObjectKey(model.AssetVideo, video.VideoKey),
		model.ObjectKey(model.AssetThumbnail, video.ThumbnailKey),
	} {
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// removeBinaries deletes the record's objects and queues whatever could not be removed.
func (s *catalogService) removeBinaries(ctx context.Context, video *model.Video) {
	for _, key := range objectKeys(video) {
		if s.files != nil {
			err := s.files.DeleteFile(ctx, key)
			if err == nil {
				continue
			}
			slog.Warn("failed to delete backing file, queueing cleanup",
				"video_id", video.ID,
				"object_key", key,
				"error", err,
			)
		}

		s.enqueueCleanup(ctx, video.ID, key)
	}
}

func (s *catalogService) enqueueCleanup(ctx context.Context, videoID uuid.UUID, key string) {
	if s.queue == nil {
		slog.Error("backing file left orphaned, no cleanup queue configured",
			"video_id", videoID,
			"object_key", key,
		)
		return
	}

	task := repository.CleanupTask{VideoID: videoID, ObjectKey: key}
	if err := s.queue.PublishCleanupTask(ctx, task); err != nil {
		slog.Error("failed to publish cleanup task",
			"video_id", videoID,
			"object_key", key,
			"error", err,
		)
		return
	}
	metrics.CleanupTasksTotal.WithLabelValues(metrics.CleanupEnqueued).Inc()
}
