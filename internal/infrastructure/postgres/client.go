package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientConfig holds configuration for the PostgreSQL client.
type ClientConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// ConnectAttempts is how many times the initial ping is tried before giving up.
	ConnectAttempts int
	// ConnectBackoff is multiplied by the attempt number between pings.
	ConnectBackoff time.Duration
}

// DefaultClientConfig returns a ClientConfig sized for catalog reads, which
// are mostly served from the in-process snapshot.
func DefaultClientConfig(dsn string) ClientConfig {
	return ClientConfig{
		DSN:             dsn,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectAttempts: 5,
		ConnectBackoff:  time.Second,
	}
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient creates a pooled client and waits for the database to answer.
// The database often starts alongside the API, so the first ping is retried.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool.Ping, cfg.ConnectAttempts, cfg.ConnectBackoff); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{pool: pool}, nil
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, attempts int, backoff time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(time.Duration(attempt-1) * backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err = ping(ctx); err == nil {
			return nil
		}
		slog.Warn("database not ready",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
	}
	return err
}

// Pool returns the underlying connection pool.
// Use this for creating repository instances.
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close closes all connections in the pool.
func (c *Client) Close() {
	c.pool.Close()
}

// RegisterPoolMetrics exposes pool occupancy as gauges sampled at scrape time.
func (c *Client) RegisterPoolMetrics(reg prometheus.Registerer) {
	factory := promauto.With(reg)
	gauge := func(name, help string, value func(*pgxpool.Stat) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vidshop",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(c.pool.Stat()) })
	}

	gauge("acquired_conns", "Connections currently checked out of the pool",
		func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) })
	gauge("idle_conns", "Idle connections in the pool",
		func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) })
	gauge("total_conns", "Total connections in the pool",
		func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) })
	gauge("empty_acquire_total", "Acquires that had to wait for a connection",
		func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) })
}
