// Package ratelimit provides a per-key sliding-window attempt counter used
// to throttle authentication and API calls.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of one Allow check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter counts attempts per key inside a fixed window. Each key's
// check-then-act sequence is serialized by the limiter's mutex, so concurrent
// callers (multiple tabs, multiple requests) see a consistent count.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]entry
	max     int
	window  time.Duration

	nowF func() time.Time
	done chan struct{}
	once sync.Once
}

const sweepInterval = time.Minute

// New returns a Limiter allowing max attempts per window per key and starts
// the background sweep. Callers own the limiter and must Close it.
func New(max int, window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]entry),
		max:     max,
		window:  window,
		nowF:    time.Now,
		done:    make(chan struct{}),
	}
	go l.sweep()
	return l
}

// NewAuthLimiter returns the limiter used for authentication attempts:
// 5 per 15 minutes.
func NewAuthLimiter() *Limiter { return New(5, 15*time.Minute) }

// NewAPILimiter returns the limiter used for generic API calls:
// 100 per 15 minutes.
func NewAPILimiter() *Limiter { return New(100, 15*time.Minute) }

// NewUploadLimiter returns the limiter used for uploads: 10 per hour.
func NewUploadLimiter() *Limiter { return New(10, time.Hour) }

// Allow records an attempt for key and reports whether it is within the
// window budget. When the budget is exhausted the count is not incremented
// and ResetTime tells the caller when the window reopens.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowF()
	e, ok := l.entries[key]
	if !ok || now.After(e.resetTime) {
		e = entry{count: 1, resetTime: now.Add(l.window)}
		l.entries[key] = e
		return Result{Allowed: true, Remaining: l.max - 1, ResetTime: e.resetTime}
	}
	if e.count >= l.max {
		return Result{Allowed: false, Remaining: 0, ResetTime: e.resetTime}
	}
	e.count++
	l.entries[key] = e
	return Result{Allowed: true, Remaining: l.max - e.count, ResetTime: e.resetTime}
}

// Reset deletes the entry for key. Administrative override and test reset.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// Close stops the background sweep. Safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.done) })
}

// sweep drops expired entries periodically to bound memory.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.nowF()
			for key, e := range l.entries {
				if now.After(e.resetTime) {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// size returns the current entry count. Test hook for the sweep.
func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
