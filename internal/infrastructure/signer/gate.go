package signer

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/hszk-dev/vidshop/internal/infrastructure/metrics"
)

// DefaultMaxConcurrent is the default number of signing requests allowed in flight.
const DefaultMaxConcurrent = 5

// Gate bounds the number of concurrent outbound signing requests.
// Waiters are not served in FIFO order; only the bound is guaranteed.
type Gate struct {
	sem    *semaphore.Weighted
	limit  int
	active atomic.Int64
}

// NewGate creates a Gate admitting at most limit concurrent holders.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Gate{
		sem:   semaphore.NewWeighted(int64(limit)),
		limit: limit,
	}
}

// Acquire blocks until a permit is free or ctx is done.
// A nil error means the caller owns a permit and must call Release exactly once.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.active.Add(1)
	metrics.SigningInFlight.Inc()
	return nil
}

// Release returns a permit obtained by Acquire.
func (g *Gate) Release() {
	g.active.Add(-1)
	metrics.SigningInFlight.Dec()
	g.sem.Release(1)
}

// Do runs fn while holding a permit and releases it on every exit path,
// including panics in fn.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// Active returns the number of permits currently held.
func (g *Gate) Active() int {
	return int(g.active.Load())
}

// Max returns the configured concurrency bound.
func (g *Gate) Max() int {
	return g.limit
}
