// FILE: src/internal/middleware/ratelimiter.go
package middleware

import (
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// RateLimiter provides per-client-IP request rate limiting for fasthttp handlers
type RateLimiter struct {
	clients         sync.Map // map[string]*clientLimiter
	requestsPerSec  float64
	burstSize       int
	cleanupInterval time.Duration
	done            chan struct{}
	stopOnce        sync.Once

	rejected atomic.Uint64
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewRateLimiter creates a new rate limiting middleware
func NewRateLimiter(requestsPerSec float64, burstSize int, cleanupInterval time.Duration) *RateLimiter {
	if burstSize < 1 {
		burstSize = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	rl := &RateLimiter{
		requestsPerSec:  requestsPerSec,
		burstSize:       burstSize,
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Wrap returns a handler that answers 429 once the client exceeds its rate
func (rl *RateLimiter) Wrap(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if !rl.Allow(ctx.RemoteAddr().String()) {
			ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
			ctx.SetContentType("application/json")
			json.NewEncoder(ctx).Encode(map[string]string{
				"error": "Too many requests",
			})
			return
		}
		next(ctx)
	}
}

// Allow consumes one token for the client address
func (rl *RateLimiter) Allow(remoteAddr string) bool {
	if rl.getLimiter(clientIP(remoteAddr)).Allow() {
		return true
	}
	rl.rejected.Add(1)
	return false
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().UnixNano()

	if val, ok := rl.clients.Load(ip); ok {
		client := val.(*clientLimiter)
		client.lastSeen.Store(now)
		return client.limiter
	}

	client := &clientLimiter{
		limiter: rate.NewLimiter(rate.Limit(rl.requestsPerSec), rl.burstSize),
	}
	client.lastSeen.Store(now)

	actual, _ := rl.clients.LoadOrStore(ip, client)
	return actual.(*clientLimiter).limiter
}

// cleanup removes old client limiters
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.removeOldClients()
		}
	}
}

// removeOldClients removes limiters that haven't been seen for 2x the cleanup interval
func (rl *RateLimiter) removeOldClients() {
	threshold := time.Now().Add(-rl.cleanupInterval * 2).UnixNano()

	rl.clients.Range(func(key, value any) bool {
		if value.(*clientLimiter).lastSeen.Load() < threshold {
			rl.clients.Delete(key)
		}
		return true
	})
}

// Stop gracefully shuts down the rate limiter
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Stats returns current rate limiter statistics
func (rl *RateLimiter) Stats() map[string]any {
	count := 0
	rl.clients.Range(func(_, _ any) bool {
		count++
		return true
	})
	return map[string]any{
		"enabled":           true,
		"requests_per_sec":  rl.requestsPerSec,
		"burst":             rl.burstSize,
		"tracked_clients":   count,
		"rejected_requests": rl.rejected.Load(),
	}
}

func clientIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || ip == "" {
		return remoteAddr
	}
	return ip
}
