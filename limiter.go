package podengine

import (
	"errors"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrRateLimitExceeded is returned by RateLimiter.Check when a key has used
// up its budget for the current window.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter is a sliding-window limiter keyed by arbitrary strings
// (client IP, IP plus email, ...). Timestamps live in an LRU capped at
// maxKeys; hits older than the window are pruned on every Check, so an
// evicted key only loses hits that would have counted. The limiter starts
// no goroutines and needs no Close.
type RateLimiter struct {
	mu     sync.Mutex
	hits   *lru.Cache[string, []time.Time]
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a RateLimiter over the given window that tracks at
// most maxKeys keys.
func NewRateLimiter(window time.Duration, maxKeys int) *RateLimiter {
	if maxKeys < 1 {
		maxKeys = 1
	}
	// lru.New only fails for a non-positive size.
	hits, _ := lru.New[string, []time.Time](maxKeys)
	return &RateLimiter{
		hits:   hits,
		window: window,
		now:    time.Now,
	}
}

// Check records a hit for key and returns nil, or returns
// ErrRateLimitExceeded without recording anything when key already has
// limit hits inside the window.
func (l *RateLimiter) Check(key string, limit int) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	hits, _ := l.hits.Get(key)
	kept := make([]time.Time, 0, len(hits)+1)
	for _, t := range hits {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit {
		l.hits.Add(key, kept)
		return ErrRateLimitExceeded
	}
	l.hits.Add(key, append(kept, now))
	return nil
}

// Len returns the number of keys currently tracked.
func (l *RateLimiter) Len() int {
	return l.hits.Len()
}

const maxEmailKeyLen = 200

// LoginKey builds the limiter key for a login attempt from the client IP and
// the trimmed, lowercased email (truncated to 200 bytes).
func LoginKey(ip, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > maxEmailKeyLen {
		email = email[:maxEmailKeyLen]
	}
	return ip + ":" + email
}
