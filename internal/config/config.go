package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Signer    SignerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	MetricsPort     int           `envconfig:"WORKER_METRICS_PORT" default:"9091"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	RetryDelay      time.Duration `envconfig:"WORKER_RETRY_DELAY" default:"5s"`
	TaskTimeout     time.Duration `envconfig:"WORKER_TASK_TIMEOUT" default:"20s"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"vidshop"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"vidshop"`
	DBName   string `envconfig:"POSTGRES_DB" default:"vidshop"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

const (
	StorageDriverMinIO = "minio"
	StorageDriverS3    = "s3"
)

// StorageConfig selects and configures the object store. Region, Bucket and
// PublicDomain also describe the direct URL used when signing is unavailable.
type StorageConfig struct {
	Driver         string        `envconfig:"STORAGE_DRIVER" default:"minio"`
	Endpoint       string        `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	PublicEndpoint string        `envconfig:"STORAGE_PUBLIC_ENDPOINT"`
	AccessKey      string        `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string        `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket         string        `envconfig:"STORAGE_BUCKET" default:"vidshop"`
	Region         string        `envconfig:"STORAGE_REGION" default:"us-east-1"`
	PublicDomain   string        `envconfig:"STORAGE_PUBLIC_DOMAIN" default:"amazonaws.com"`
	UseSSL         bool          `envconfig:"STORAGE_USE_SSL" default:"false"`
	UsePathStyle   bool          `envconfig:"STORAGE_USE_PATH_STYLE" default:"false"`
	URLExpiry      time.Duration `envconfig:"STORAGE_URL_EXPIRY" default:"1h"`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"vidshop"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"vidshop"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	Channel  string `envconfig:"REDIS_INVALIDATION_CHANNEL" default:"vidshop:catalog:invalidate"`
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SignerConfig controls the client side of the signing endpoint.
// An empty BaseURL points the client at this process.
type SignerConfig struct {
	BaseURL        string        `envconfig:"SIGNER_BASE_URL"`
	MaxAttempts    int           `envconfig:"SIGNER_MAX_ATTEMPTS" default:"3"`
	BaseBackoff    time.Duration `envconfig:"SIGNER_BASE_BACKOFF" default:"1s"`
	AttemptTimeout time.Duration `envconfig:"SIGNER_ATTEMPT_TIMEOUT" default:"5s"`
	MaxConcurrent  int           `envconfig:"SIGNER_MAX_CONCURRENT" default:"5"`
}

type CacheConfig struct {
	AssetURLTTL          time.Duration `envconfig:"ASSET_URL_TTL" default:"30m"`
	CatalogTTL           time.Duration `envconfig:"CATALOG_TTL" default:"60s"`
	SweepInterval        time.Duration `envconfig:"CACHE_SWEEP_INTERVAL" default:"1m"`
	AssetSingleflight    bool          `envconfig:"ASSET_SINGLEFLIGHT" default:"false"`
	ThumbnailPlaceholder string        `envconfig:"THUMBNAIL_PLACEHOLDER" default:"/static/img/thumbnail-placeholder.svg"`
	ResolveConcurrency   int           `envconfig:"ASSET_RESOLVE_CONCURRENCY" default:"16"`
}

type RateLimitConfig struct {
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	Burst    int           `envconfig:"RATE_LIMIT_BURST" default:"40"`
	IdleTTL  time.Duration `envconfig:"RATE_LIMIT_IDLE_TTL" default:"10m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageDriverMinIO, StorageDriverS3:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverMinIO, StorageDriverS3, c.Storage.Driver)
	}
	if c.Signer.MaxConcurrent <= 0 {
		return fmt.Errorf("SIGNER_MAX_CONCURRENT must be positive")
	}
	if c.Signer.MaxAttempts <= 0 {
		return fmt.Errorf("SIGNER_MAX_ATTEMPTS must be positive")
	}
	if c.Cache.AssetURLTTL <= 0 || c.Cache.CatalogTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	// URLs signed by this process must outlive their cache entries.
	if c.Signer.BaseURL == "" && c.Cache.AssetURLTTL >= c.Storage.URLExpiry {
		return fmt.Errorf("ASSET_URL_TTL (%s) must be shorter than STORAGE_URL_EXPIRY (%s)", c.Cache.AssetURLTTL, c.Storage.URLExpiry)
	}
	return nil
}

// SignerBaseURL returns the signing endpoint origin, defaulting to this API.
func (c *Config) SignerBaseURL() string {
	if c.Signer.BaseURL != "" {
		return c.Signer.BaseURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
}
