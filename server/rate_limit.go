package server

import (
	"sync"
	"time"
)

// rateLimiter limits the number of ingestion requests accepted per fixed window.
// Requests beyond the limit are rejected with 429 until the window resets.
type rateLimiter struct {
	limit  int
	window time.Duration

	// resetAt is the end of the current window.
	resetAt time.Time

	// used is the number of requests seen in the current window.
	used int

	lock sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
	}
}

// exceeded records a request and returns how long the caller must wait, or zero if the request is allowed.
func (r *rateLimiter) exceeded() time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := time.Now()

	if !now.Before(r.resetAt) {
		r.used = 0
		r.resetAt = now.Add(r.window)
	}

	if r.used++; r.used <= r.limit {
		return 0
	}

	return r.resetAt.Sub(now)
}
