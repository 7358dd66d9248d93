package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window request limiter keyed by caller (user id or IP)
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxReqs int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

// NewLimiter allows maxRequests per window per key and starts a janitor
// goroutine that Stop ends.
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	limiter := &Limiter{
		buckets: make(map[string]*bucket),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go limiter.cleanupLoop(5 * time.Minute)
	return limiter
}

// Allow records a request for key under the default limit. An empty key is never limited.
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	return l.take(key, l.maxReqs, l.window)
}

// AllowStrict applies a separate, tighter limit for sensitive endpoints
func (l *Limiter) AllowStrict(identifier string, maxReqs int, window time.Duration) bool {
	return l.take("strict:"+identifier, maxReqs, window)
}

func (l *Limiter) take(key string, maxReqs int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-window)
	kept := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.requests = kept
	b.lastSeen = now

	if len(b.requests) >= maxReqs {
		return false
	}
	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictStale(15 * time.Minute)
		}
	}
}

func (l *Limiter) evictStale(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	threshold := l.now().Add(-idle)
	for key, b := range l.buckets {
		if b.lastSeen.Before(threshold) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the janitor goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.done) })
}
