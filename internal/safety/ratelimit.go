package safety

import (
	"sync"
	"time"
)

// RateWindow is the sliding window the limiter counts requests in.
const RateWindow = time.Minute

// RateLimiter admits at most limit requests per client within RateWindow.
// It keeps a timestamp log per client; construct one per process and share
// it between gates.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	now       func() time.Time
	hits      map[string][]time.Time
	lastSweep time.Time
}

// NewRateLimiter returns a limiter allowing rpm requests per minute per client.
func NewRateLimiter(rpm int) *RateLimiter {
	return &RateLimiter{
		limit: rpm,
		now:   time.Now,
		hits:  make(map[string][]time.Time),
	}
}

// Allow evicts expired entries for client, then admits and records the
// request if the client is under the limit. It returns the number of
// requests counted in the window, including this one when admitted.
func (r *RateLimiter) Allow(client string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= RateWindow {
		r.sweep(now)
	}
	log := r.hits[client]
	kept := log[:0]
	for _, t := range log {
		if now.Sub(t) < RateWindow {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.limit {
		r.hits[client] = kept
		return len(kept), false
	}
	kept = append(kept, now)
	r.hits[client] = kept
	return len(kept), true
}

// sweep drops clients whose newest request has left the window.
func (r *RateLimiter) sweep(now time.Time) {
	for c, log := range r.hits {
		if len(log) == 0 || now.Sub(log[len(log)-1]) >= RateWindow {
			delete(r.hits, c)
		}
	}
	r.lastSweep = now
}

// Limit is the per-client requests-per-minute cap.
func (r *RateLimiter) Limit() int { return r.limit }
