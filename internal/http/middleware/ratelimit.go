// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the in-memory token-bucket rate limiter guarding the
// interview API. Buckets are held per caller identity: organization users are
// keyed by their authenticated user id, candidate chat traffic by the attempt
// id in the session path, and anything else by client IP. Idle buckets are
// evicted opportunistically so the map stays bounded.
//
// The limiter is process-local. A horizontally scaled deployment needs a
// shared store (e.g. Redis) to enforce a global budget; within one process
// this is the cheap edge guard in front of the LLM-backed endpoints.
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity owning its token bucket. The
// returned key must be stable for the lifetime of the request, e.g.
// "user:<id>" or "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyByPrincipalOrIP returns the bucket-key function used by the API:
//
//   - "user:<id>" for authenticated organization users (CtxKeyUserID, set by
//     the auth middleware)
//   - "attempt:<id>" for candidate session endpoints, keyed by the attempt id
//     in the path so candidates behind a shared NAT do not drain one bucket
//   - "ip:<addr>" for all remaining anonymous traffic
func KeyByPrincipalOrIP() keyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(CtxKeyUserID); ok {
			if s, ok := v.(string); ok && s != "" {
				return "user:" + s
			}
		}
		if strings.Contains(c.FullPath(), "/sessions/") {
			if id := c.Param("id"); id != "" {
				return "attempt:" + id
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// bucket pairs a token bucket with the last time its owner was seen, so idle
// entries can be evicted.
type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	// bucketIdleTTL is how long an untouched bucket survives.
	bucketIdleTTL = 10 * time.Minute
	// gcEvery triggers an eviction sweep after this many lookups.
	gcEvery = 5000
)

// RateLimiter enforces per-identity token-bucket limits.
//
// Buckets are created on demand in a mutex-guarded map and swept during
// lookups once every gcEvery requests. Safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups uint64
}

// NewRateLimiter constructs a RateLimiter replenishing rps tokens per second
// with the given burst size (values <= 0 are raised to 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: make(map[string]*bucket),
	}
}

// bucketFor returns the token bucket for key, creating it when absent.
//
// The eviction sweep runs before the requested bucket is touched, so a stale
// bucket is evicted even when it is the one being fetched.
func (rl *RateLimiter) bucketFor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.lookups++
	if rl.lookups >= gcEvery {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= bucketIdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lookups = 0
	}

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		lim := b.lim
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets[key] = &bucket{lim: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as a
// replay of a completed invite, in which case Handler serves it without
// consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass) // set by IdempotencyValidator
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the Gin middleware enforcing the limit. Replays detected by
// the idempotency layer pass through; everything else draws a token from its
// caller's bucket or is rejected:
//
//	HTTP/1.1 429 Too Many Requests
//	{
//	  "request_id": "<uuid>",
//	  "code":       "rate_limited",
//	  "message":    "rate limit exceeded"
//	}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.bucketFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
