package delivery

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// phoneLimiter keeps one token bucket per phone number so a single number
// cannot be flooded with codes.
type phoneLimiter struct {
	rate  rate.Limit
	burst int

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

func newPhoneLimiter(perMinute, burst int) *phoneLimiter {
	return &phoneLimiter{
		rate:        rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst:       burst,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

func (l *phoneLimiter) allow(phone string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup()

	lim, ok := l.limiters[phone]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[phone] = lim
	}
	return lim.Allow()
}

// maybeCleanup forgets buckets that have refilled completely, at most once
// every 5 minutes. Caller holds l.mu.
func (l *phoneLimiter) maybeCleanup() {
	if time.Since(l.lastCleanup) < 5*time.Minute {
		return
	}
	l.lastCleanup = time.Now()

	for phone, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, phone)
		}
	}
}
