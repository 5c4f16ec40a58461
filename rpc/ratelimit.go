package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sourceLimiter applies a token bucket per client source. A zero rate disables
// throttling.
type sourceLimiter struct {
	perMinute int
	burst     int
	mu        sync.Mutex
	sources   map[string]*sourceEntry
	clockNow  func() time.Time
}

func newSourceLimiter(perMinute, burst int) *sourceLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &sourceLimiter{
		perMinute: perMinute,
		burst:     burst,
		sources:   make(map[string]*sourceEntry),
		clockNow:  time.Now,
	}
}

func (l *sourceLimiter) allow(source string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := l.clockNow()
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.sources {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.sources, key)
		}
	}
	entry, ok := l.sources[source]
	if !ok {
		perSecond := float64(l.perMinute) / 60.0
		entry = &sourceEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), l.burst)}
		l.sources[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}
