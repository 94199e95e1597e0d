package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is returned when a caller exhausts its window. Callers map
// it to HTTP 429 or a non-fatal client notice rather than a generic failure.
var ErrRateLimited = errors.New("too many requests, please try again later")

const (
	// DefaultLimit and DefaultWindow match the per-user send/fetch policy:
	// 10 operations per rolling 60 second window.
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter counts operations per (user, operation) key over a fixed window.
// When the window elapses the counter resets outright; there is no gradual
// refill. State lives in memory only, no I/O.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
}

// New builds a limiter with the given policy.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one operation for the user/op pair and returns ErrRateLimited
// once the count in the current window exceeds the limit.
func (l *Limiter) Allow(userID int, op string) error {
	key := fmt.Sprintf("%d_%s", userID, op)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{resetTime: now.Add(l.window)}
		l.entries[key] = e
	}
	if now.After(e.resetTime) {
		e.count = 0
		e.resetTime = now.Add(l.window)
	}
	e.count++
	if e.count > l.limit {
		return ErrRateLimited
	}
	return nil
}
