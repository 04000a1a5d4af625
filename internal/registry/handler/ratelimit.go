package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleAfter  = 10 * time.Minute
)

// clientBuckets holds one token bucket per client IP.
type clientBuckets struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	*rate.Limiter
	seen time.Time
}

func newClientBuckets(rps, burst int) *clientBuckets {
	return &clientBuckets{rps: rate.Limit(rps), burst: burst, buckets: make(map[string]*bucket)}
}

// allow spends a token from ip's bucket, creating the bucket on first use.
func (cb *clientBuckets) allow(ip string, now time.Time) bool {
	cb.mu.Lock()
	b, ok := cb.buckets[ip]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(cb.rps, cb.burst)}
		cb.buckets[ip] = b
	}
	b.seen = now
	cb.mu.Unlock()
	return b.AllowN(now, 1)
}

// evictIdle drops buckets not used within limiterIdleAfter of now and
// reports how many remain.
func (cb *clientBuckets) evictIdle(now time.Time) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for ip, b := range cb.buckets {
		if now.Sub(b.seen) > limiterIdleAfter {
			delete(cb.buckets, ip)
		}
	}
	return len(cb.buckets)
}

// RateLimiter limits each client IP to rps requests per second with the given
// burst, answering 429 with Retry-After once the bucket is empty. Buckets idle
// for ten minutes are swept until ctx ends.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	cb := newClientBuckets(rps, burst)

	go func() {
		t := time.NewTicker(limiterSweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				cb.evictIdle(now)
			}
		}
	}()

	return func(c *gin.Context) {
		if cb.allow(c.ClientIP(), time.Now()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
	}
}
