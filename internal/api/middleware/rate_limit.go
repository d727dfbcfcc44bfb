package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for per-client rate limiting.
type RateLimitConfig struct {
	// Requests allowed per Window for a single client.
	Requests int
	Window   time.Duration
	// Burst is the number of requests a client may issue at once.
	Burst int
	// IdleTTL drops limiters of clients that have been quiet this long.
	IdleTTL time.Duration
	// ExemptLoopback lets requests from this host through unthrottled.
	ExemptLoopback bool
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter tracks a token bucket per client key.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	exempt  bool
	now     func() time.Time

	// lastSweep is when idle clients were last dropped; sweeps run at most
	// once per idleTTL.
	lastSweep time.Time
}

// NewClientLimiter creates a ClientLimiter. Non-positive values fall back to
// 1 request per second with a burst of 1 and a 5 minute idle TTL.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}

	return &ClientLimiter{
		clients: make(map[string]*client),
		limit:   rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		exempt:  cfg.ExemptLoopback,
		now:     time.Now,
	}
}

// Allow reports whether key may perform one more request now.
func (l *ClientLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}
	l.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// sweep drops clients idle longer than idleTTL. l.mu must be held.
func (l *ClientLimiter) sweep(now time.Time) {
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects requests from clients that exceed their budget with 429.
// Clients are keyed by remote IP; use chi's RealIP middleware in front of it
// when running behind a proxy.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/float64(l.limit)))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if l.exempt && isLoopback(key) {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(key) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "Too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
