package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/resilience"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Rate is the sustained number of requests per second per client.
	Rate float64 `yaml:"rate" mapstructure:"rate"`
	// Burst is the number of requests a client may issue at once.
	Burst int `yaml:"burst" mapstructure:"burst"`
	// KeyFunc extracts the bucket key from a request. Defaults to the remote IP.
	KeyFunc func(*http.Request) string `yaml:"-" mapstructure:"-"`
}

// idleBucketTTL is how long an unused bucket is kept before it is pruned.
const idleBucketTTL = 10 * time.Minute

// RateLimit returns middleware that gives each client its own token bucket and
// answers 429 with Retry-After once the bucket is empty. Health check paths are
// never limited.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RemoteIP
	}
	rl := &clientLimiters{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if wait, ok := rl.allow(cfg.KeyFunc(r)); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				WriteError(w, r, apperrors.RateLimited(wait))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RemoteIP returns the host part of the connection's remote address.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type bucket struct {
	limiter  *resilience.RateLimiter
	lastSeen time.Time
}

type clientLimiters struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
	now       func() time.Time
}

func (c *clientLimiters) allow(key string) (time.Duration, bool) {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastPrune) > idleBucketTTL {
		for k, b := range c.buckets {
			if now.Sub(b.lastSeen) > idleBucketTTL {
				delete(c.buckets, k)
			}
		}
		c.lastPrune = now
	}
	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "client:" + key,
			Rate:  c.cfg.Rate,
			Burst: c.cfg.Burst,
		})}
		c.buckets[key] = b
	}
	b.lastSeen = now
	c.mu.Unlock()

	if b.limiter.Allow() {
		return 0, true
	}
	wait := b.limiter.RetryAfter()
	if wait <= 0 {
		wait = time.Second
	}
	return wait, false
}
