package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type client struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-address token bucket. Upload endpoints carry large
// bodies, so the limiter runs before body parsing.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rate    float64 // tokens per second
	burst   float64
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		rate:    rps,
		burst:   float64(burst),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr

		rl.mu.Lock()
		c, exists := rl.clients[addr]
		if !exists {
			c = &client{tokens: rl.burst, lastSeen: time.Now()}
			rl.clients[addr] = c
		}

		c.tokens += time.Since(c.lastSeen).Seconds() * rl.rate
		if c.tokens > rl.burst {
			c.tokens = rl.burst
		}
		c.lastSeen = time.Now()

		if c.tokens < 1 {
			rl.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		c.tokens--
		rl.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for addr, c := range rl.clients {
			if time.Since(c.lastSeen) > 3*time.Minute {
				delete(rl.clients, addr)
			}
		}
		rl.mu.Unlock()
	}
}
