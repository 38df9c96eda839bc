package middleware

import (
	"net/http"
	"sync"
	"time"
)

// CostFunc assigns a token cost to a request. Turn endpoints invoke the
// language model and get weighted heavier than bookkeeping reads.
type CostFunc func(*http.Request) float64

// UnitCost charges every request one token.
func UnitCost(*http.Request) float64 { return 1 }

// RateLimiter meters clients with one token bucket each, keyed by IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	refill  float64 // tokens per second
	burst   float64
}

type tokenBucket struct {
	remaining float64
	last      time.Time
}

// NewRateLimiter creates a limiter refilling at rate tokens/sec up to burst
// per client.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*tokenBucket),
		refill:  rate,
		burst:   float64(burst),
	}
	// Periodically evict idle clients to prevent memory growth.
	go rl.evictIdle()
	return rl
}

// AllowN reports whether the client may spend cost tokens now.
func (rl *RateLimiter) AllowN(key string, cost float64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.clients[key]
	if !ok {
		b = &tokenBucket{remaining: rl.burst, last: now}
		rl.clients[key] = b
	}

	b.remaining += now.Sub(b.last).Seconds() * rl.refill
	if b.remaining > rl.burst {
		b.remaining = rl.burst
	}
	b.last = now

	if b.remaining < cost {
		return false
	}
	b.remaining -= cost
	return true
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-10 * time.Minute)
		for key, b := range rl.clients {
			if b.last.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Handler returns middleware rejecting requests whose cost exceeds the
// client's remaining budget with 429 Too Many Requests.
func (rl *RateLimiter) Handler(cost CostFunc) func(http.Handler) http.Handler {
	if cost == nil {
		cost = UnitCost
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.AllowN(clientKey(r), cost(r)) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey prefers X-Real-Ip set by chi's RealIP middleware.
func clientKey(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
