package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/infrastructure/cache"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// DefaultThumbnailPlaceholder is served when a thumbnail cannot be resolved.
const DefaultThumbnailPlaceholder = "/static/img/thumbnail-placeholder.svg"

// sharedResolveTimeout bounds a collapsed signing call, which is detached
// from the caller that started it.
const sharedResolveTimeout = 30 * time.Second

// URLSigner resolves an identifier into a delivery URL. Resolve never fails.
type URLSigner interface {
	Resolve(ctx context.Context, kind model.AssetKind, identifier string) model.SignedURL
}

// AssetResolverConfig holds configuration for AssetResolver.
type AssetResolverConfig struct {
	// Placeholder replaces thumbnails that could not be resolved.
	Placeholder string
	// Singleflight collapses concurrent misses for the same object key into one signing call.
	Singleflight bool
	// Concurrency bounds the goroutines resolving one catalog page.
	Concurrency int
}

// DefaultAssetResolverConfig returns the default configuration.
func DefaultAssetResolverConfig() AssetResolverConfig {
	return AssetResolverConfig{
		Placeholder:  DefaultThumbnailPlaceholder,
		Singleflight: false,
		Concurrency:  16,
	}
}

// CatalogItem is a catalog record together with its resolved thumbnail.
type CatalogItem struct {
	Video        *model.Video
	ThumbnailURL string
}

// AssetResolver combines the signer with the asset URL cache.
// Results are cached by full object key whether signed or fallback.
type AssetResolver struct {
	signer  URLSigner
	urls    *cache.TTL[string, model.SignedURL]
	sfGroup singleflight.Group

	placeholder  string
	singleflight bool
	concurrency  int
}

// NewAssetResolver creates a new AssetResolver.
func NewAssetResolver(signer URLSigner, urls *cache.TTL[string, model.SignedURL], cfg AssetResolverConfig) *AssetResolver {
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultThumbnailPlaceholder
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultAssetResolverConfig().Concurrency
	}

	return &AssetResolver{
		signer:       signer,
		urls:         urls,
		placeholder:  cfg.Placeholder,
		singleflight: cfg.Singleflight,
		concurrency:  cfg.Concurrency,
	}
}

// ThumbnailURL returns a displayable thumbnail URL for v.
// It always yields a URL: signed, fallback, or the placeholder.
func (r *AssetResolver) ThumbnailURL(ctx context.Context, v *model.Video) (thumbnailURL string) {
	if v == nil || strings.TrimSpace(v.ThumbnailKey) == "" {
		return r.usePlaceholder()
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("thumbnail resolution panicked, using placeholder",
				"video_id", v.ID,
				"thumbnail_key", v.ThumbnailKey,
				"panic", p,
			)
			thumbnailURL = r.usePlaceholder()
		}
	}()

	res := r.resolve(ctx, model.AssetThumbnail, v.ThumbnailKey)
	if res.URL == "" {
		return r.usePlaceholder()
	}
	return res.URL
}

// VideoURL returns the delivery URL for v's video binary.
// Records without a video key yield an empty result.
func (r *AssetResolver) VideoURL(ctx context.Context, v *model.Video) model.SignedURL {
	if v == nil || strings.TrimSpace(v.VideoKey) == "" {
		return model.SignedURL{}
	}
	return r.resolve(ctx, model.AssetVideo, v.VideoKey)
}

// ResolveCatalog resolves thumbnails for a listing concurrently.
// The result keeps the order of videos.
func (r *AssetResolver) ResolveCatalog(ctx context.Context, videos []*model.Video) []CatalogItem {
	items := make([]CatalogItem, len(videos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, v := range videos {
		g.Go(func() error {
			items[i] = CatalogItem{Video: v, ThumbnailURL: r.ThumbnailURL(gctx, v)}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return items
}

// Evict drops the cached URLs of a record, e.g. after its keys changed.
func (r *AssetResolver) Evict(v *model.Video) {
	if v == nil {
		return
	}
	if key := model.ObjectKey(model.AssetThumbnail, v.ThumbnailKey); key != "" {
		r.urls.Invalidate(key)
	}
	if key := model.ObjectKey(model.AssetVideo, v.VideoKey); key != "" {
		r.urls.Invalidate(key)
	}
}

// EvictKey drops the cached URL of a single object key.
func (r *AssetResolver) EvictKey(objectKey string) {
	r.urls.Invalidate(objectKey)
}

func (r *AssetResolver) resolve(ctx context.Context, kind model.AssetKind, identifier string) model.SignedURL {
	key := model.ObjectKey(kind, identifier)

	if cached, ok := r.urls.Get(key); ok {
		return cached
	}

	if !r.singleflight {
		return r.fill(ctx, kind, identifier, key)
	}

	result, _, shared := r.sfGroup.Do(key, func() (any, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		return r.fill(fillCtx, kind, identifier, key), nil
	})
	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupAssetURL, metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightGroupAssetURL, metrics.SingleflightInitiated).Inc()
	}
	return result.(model.SignedURL)
}

// fill signs key and stores the outcome.
func (r *AssetResolver) fill(ctx context.Context, kind model.AssetKind, identifier, key string) model.SignedURL {
	res := r.signer.Resolve(ctx, kind, identifier)

	if res.Fallback {
		metrics.AssetResolutionsTotal.WithLabelValues(kind.String(), metrics.ResolutionFallback).Inc()
	} else {
		metrics.AssetResolutionsTotal.WithLabelValues(kind.String(), metrics.ResolutionSigned).Inc()
	}

	// A fallback caused by the caller going away says nothing about the signer.
	if res.Fallback && ctx.Err() != nil {
		return res
	}

	r.urls.Set(key, res)
	return res
}

func (r *AssetResolver) usePlaceholder() string {
	metrics.AssetResolutionsTotal.WithLabelValues(model.AssetThumbnail.String(), metrics.ResolutionPlaceholder).Inc()
	return r.placeholder
}
