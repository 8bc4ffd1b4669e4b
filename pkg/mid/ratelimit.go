package mid

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is one client's token bucket plus its last-seen time for
// eviction.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out per-client token buckets keyed by remote IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
	done    chan struct{}
}

// NewRateLimiter allows roughly perMinute requests per client with the given
// burst. Values below 1 are clamped to 1. Idle client buckets are evicted in
// the background until Close is called.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Close stops the background eviction goroutine.
func (rl *RateLimiter) Close() { close(rl.done) }

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (rl *RateLimiter) evictLoop() {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-tick.C:
			rl.evictIdle(3 * time.Minute)
		}
	}
}

// evictIdle drops every bucket whose client has been quiet for at least idle.
func (rl *RateLimiter) evictIdle(idle time.Duration) {
	rl.mu.Lock()
	for key, c := range rl.clients {
		if time.Since(c.lastSeen) > idle {
			delete(rl.clients, key)
		}
	}
	rl.mu.Unlock()
}

// RateLimit returns middleware that rejects clients exceeding their bucket
// with 429.
func RateLimit(rl *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				key = r.RemoteAddr
			}
			if !rl.allow(key) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
