// Package ratelimit throttles inbound websocket frames per
// authenticated user and REST calls per client IP, adapted from the teacher's
// golang.org/x/time/rate-based limiter map.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiveboardgame/realtime/internal/logging"
)

var log = logging.New("ratelimit")

// Config configures a Limiter.
type Config struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultConfig is used for general REST traffic.
var DefaultConfig = Config{RequestsPerSecond: 10, BurstSize: 20, CleanupInterval: 5 * time.Minute}

// ActionConfig is stricter, used for inbound game-action frames
// (Turn/Control/Chat) to prevent spam over the single persistent
// connection.
var ActionConfig = Config{RequestsPerSecond: 5, BurstSize: 10, CleanupInterval: 5 * time.Minute}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client key.
type Limiter struct {
	mu          sync.RWMutex
	limiters    map[string]*entry
	config      Config
	stopCleanup chan struct{}
}

// New creates a Limiter with a background cleanup goroutine.
func New(config Config) *Limiter {
	l := &Limiter{
		limiters:    make(map[string]*entry),
		config:      config,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a request from key should proceed.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
			lastSeen: time.Now(),
		}
		l.limiters[key] = e
	} else {
		e.lastSeen = time.Now()
	}
	return e.limiter
}

// Count returns the number of tracked clients (for monitoring).
func (l *Limiter) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.config.CleanupInterval)
	removed := 0
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("cleaned up %d inactive limiters", removed)
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stopCleanup)
}

// HTTPMiddleware enforces the limiter keyed by remote address.
func (l *Limiter) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, "rate limit exceeded, please slow down", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
