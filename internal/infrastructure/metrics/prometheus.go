// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidshop"

var (
	// CacheOperationsTotal tracks in-process cache operations.
	// Labels:
	//   - operation: get, set, delete, clear, purge
	//   - status: hit, miss, success, expired
	//   - cache_type: asset_url, catalog
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update, delete
	//   - table: videos
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - group: catalog, asset_url
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"group", "result"},
	)

	// SigningAttemptsTotal tracks individual calls to the signing endpoint.
	// Labels:
	//   - outcome: success, http_error, bad_response, transport_error
	SigningAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signing_attempts_total",
			Help:      "Total number of signing endpoint attempts",
		},
		[]string{"outcome"},
	)

	// AssetResolutionsTotal tracks the final result of asset URL resolution.
	// Labels:
	//   - kind: video, thumbnail
	//   - result: signed, fallback, placeholder
	AssetResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_resolutions_total",
			Help:      "Total number of asset URL resolutions by result",
		},
		[]string{"kind", "result"},
	)

	// SigningInFlight reports the number of signing requests holding a gate permit.
	SigningInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signing_in_flight",
			Help:      "Number of signing requests currently in flight",
		},
	)

	// StorageOperationsTotal tracks calls to the object store.
	// Labels:
	//   - driver: minio, s3
	//   - operation: presign, delete, exists, ping
	//   - result: success, error
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of object storage operations",
		},
		[]string{"driver", "operation", "result"},
	)

	// CleanupTasksTotal tracks asset cleanup outcomes.
	// Labels:
	//   - result: deleted, enqueued, retried, dropped
	CleanupTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_tasks_total",
			Help:      "Total number of asset cleanup outcomes",
		},
		[]string{"result"},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusExpired = "expired"
	CacheStatusSuccess = "success"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
	CacheOpClear  = "clear"
	CacheOpPurge  = "purge"
)

// Cache type constants.
const (
	CacheTypeAssetURL = "asset_url"
	CacheTypeCatalog  = "catalog"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
	DBQueryDelete = "delete"
)

// Table name constants.
const (
	TableVideos = "videos"
)

// Singleflight constants.
const (
	SingleflightGroupCatalog  = "catalog"
	SingleflightGroupAssetURL = "asset_url"
	SingleflightInitiated     = "initiated"
	SingleflightShared        = "shared"
)

// Signing attempt outcome constants.
const (
	SigningSuccess        = "success"
	SigningHTTPError      = "http_error"
	SigningBadResponse    = "bad_response"
	SigningTransportError = "transport_error"
)

// Asset resolution result constants.
const (
	ResolutionSigned      = "signed"
	ResolutionFallback    = "fallback"
	ResolutionPlaceholder = "placeholder"
)

// Cleanup result constants.
const (
	CleanupDeleted  = "deleted"
	CleanupEnqueued = "enqueued"
	CleanupRetried  = "retried"
	CleanupDropped  = "dropped"
)

// Storage constants.
const (
	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"

	StorageOpPresign = "presign"
	StorageOpDelete  = "delete"
	StorageOpExists  = "exists"
	StorageOpPing    = "ping"

	StorageResultSuccess = "success"
	StorageResultError   = "error"
)
