package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/vidshop/internal/api/handler"
	"github.com/hszk-dev/vidshop/internal/api/middleware"
	"github.com/hszk-dev/vidshop/internal/config"
	"github.com/hszk-dev/vidshop/internal/domain/model"
	"github.com/hszk-dev/vidshop/internal/infrastructure/cache"
	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
	"github.com/hszk-dev/vidshop/internal/infrastructure/postgres"
	"github.com/hszk-dev/vidshop/internal/infrastructure/queue"
	"github.com/hszk-dev/vidshop/internal/infrastructure/signer"
	"github.com/hszk-dev/vidshop/internal/infrastructure/storage"
	"github.com/hszk-dev/vidshop/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	pgClient.RegisterPoolMetrics(prometheus.DefaultRegisterer)
	logger.Info("connected to PostgreSQL")

	objectStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}
	logger.Info("connected to object storage", slog.String("driver", cfg.Storage.Driver))

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Caches
	assetURLs := cache.NewTTL[string, model.SignedURL](metrics.CacheTypeAssetURL, cfg.Cache.AssetURLTTL)
	snapshots := cache.NewTTL[string, []*model.Video](metrics.CacheTypeCatalog, cfg.Cache.CatalogTTL)
	go assetURLs.Run(ctx, cfg.Cache.SweepInterval)
	go snapshots.Run(ctx, cfg.Cache.SweepInterval)

	// Signing client
	fallback := signer.FallbackConfig{
		Bucket: cfg.Storage.Bucket,
		Region: cfg.Storage.Region,
		Domain: cfg.Storage.PublicDomain,
	}
	signerCfg := signer.DefaultClientConfig(cfg.SignerBaseURL(), fallback)
	signerCfg.MaxAttempts = cfg.Signer.MaxAttempts
	signerCfg.BaseBackoff = cfg.Signer.BaseBackoff
	signerCfg.AttemptTimeout = cfg.Signer.AttemptTimeout
	signerClient := signer.NewClient(signerCfg, signer.NewGate(cfg.Signer.MaxConcurrent), &http.Client{})

	// Services
	videoRepo := postgres.NewVideoRepository(pgClient.Pool())
	bus := cache.NewRedisInvalidationBus(redisClient, cfg.Redis.Channel)

	assets := usecase.NewAssetResolver(signerClient, assetURLs, usecase.AssetResolverConfig{
		Placeholder:  cfg.Cache.ThumbnailPlaceholder,
		Singleflight: cfg.Cache.AssetSingleflight,
		Concurrency:  cfg.Cache.ResolveConcurrency,
	})
	catalogSvc := usecase.NewCatalogService(videoRepo, snapshots,
		usecase.WithBroadcaster(bus),
		usecase.WithAssetEvictor(assets),
		usecase.WithFileRemover(signerClient),
		usecase.WithCleanupQueue(queueClient),
	)
	storageSvc := usecase.NewStorageService(objectStorage, usecase.StorageServiceConfig{
		URLExpiry: cfg.Storage.URLExpiry,
	})

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}
	defer sub.Close()

	go func() {
		err := sub.Listen(ctx, func(scope string) {
			if scope == usecase.CatalogInvalidationScope {
				catalogSvc.InvalidateLocal()
				return
			}
			if key, ok := usecase.ParseAssetScope(scope); ok {
				assets.EvictKey(key)
			}
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("invalidation listener stopped", slog.String("error", err.Error()))
		}
	}()

	limiter := middleware.NewClientLimiter(middleware.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Burst:    cfg.RateLimit.Burst,
		IdleTTL:  cfg.RateLimit.IdleTTL,
		// The catalog signs through this process when no external signer is set.
		ExemptLoopback: cfg.Signer.BaseURL == "",
	})

	checks := map[string]handler.Checker{
		"postgres": pgClient.Ping,
		"storage":  objectStorage.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	r := setupRouter(logger, routes{
		catalog: handler.NewCatalogHandler(catalogSvc, assets),
		asset:   handler.NewAssetHandler(storageSvc),
		limiter: limiter,
		checks:  checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

type routes struct {
	catalog *handler.CatalogHandler
	asset   *handler.AssetHandler
	limiter *middleware.ClientLimiter
	checks  map[string]handler.Checker
}

func setupRouter(logger *slog.Logger, rt routes) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready(rt.checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(rt.limiter))
		r.Use(chimw.Timeout(10 * time.Second))

		r.Get("/signed-url/*", rt.asset.SignedURL)
		r.Delete("/delete-file/*", rt.asset.DeleteFile)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Get("/", rt.catalog.List)
			r.Post("/", rt.catalog.Create)
			r.Get("/{id}", rt.catalog.Get)
			r.Put("/{id}", rt.catalog.Update)
			r.Delete("/{id}", rt.catalog.Delete)
		})
	})

	return r
}
