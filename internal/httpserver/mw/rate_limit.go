package mw

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/relayscope/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int           // peers tracked at once; least recently seen are evicted
	IdleTTL           time.Duration // a peer's bucket is forgotten after this long
	TrustProxy        bool          // resolve IP from proxy headers when true
}

// limiter keeps one token bucket per client IP.
type limiter struct {
	cfg     RateLimitConfig
	limit   rate.Limit
	buckets *expirable.LRU[string, *rate.Limiter]
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RefillPerIPPerMin < 1 {
		cfg.RefillPerIPPerMin = 1
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}
	return &limiter{
		cfg:     cfg,
		limit:   rate.Limit(float64(cfg.RefillPerIPPerMin) / 60.0),
		buckets: expirable.NewLRU[string, *rate.Limiter](cfg.MaxEntries, nil, cfg.IdleTTL),
	}
}

func (l *limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(l.limit, l.cfg.Burst)
	// a racing request may have created one too; either bucket is acceptable
	l.buckets.Add(key, b)
	return b
}

// allow consumes one token, or reports how long until one is available.
func (l *limiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfterSec int) {
	b := l.bucket(key)

	res := b.ReserveN(now, 1)
	if !res.OK() {
		return false, 0, 1
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, 0, max(1, int(math.Ceil(delay.Seconds())))
	}
	return true, int(math.Floor(b.TokensAt(now))), 0
}

func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, l.cfg.TrustProxy)

			ok, remaining, retry := l.allow(key, time.Now())
			w.Header().Set("X-RateLimit-Limit", limitStr)
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
			next.ServeHTTP(w, r)
		})
	}
}
