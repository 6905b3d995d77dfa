package fetch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RateLimiter enforces a minimum gap between consecutive fetch attempts made under the same key.
// The crawl engine keys it by worker, so each worker pauses after its own fetches.
type RateLimiter struct {
	lastAttempt   map[string]time.Time
	lastAttemptMu sync.Mutex
	defaultDelay  time.Duration // Used when a caller passes a non-positive delay
	log           *logrus.Entry
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(defaultDelay time.Duration, log *logrus.Entry) *RateLimiter {
	return &RateLimiter{
		lastAttempt:  make(map[string]time.Time),
		defaultDelay: defaultDelay,
		log:          log,
	}
}

// ApplyDelay blocks until at least minDelay has passed since the last attempt recorded for key.
// Up to 10% extra jitter is added; the wait never drops below minDelay. Returns early if ctx ends.
func (rl *RateLimiter) ApplyDelay(ctx context.Context, key string, minDelay time.Duration) {
	if minDelay <= 0 {
		minDelay = rl.defaultDelay
	}
	if minDelay <= 0 {
		return
	}

	rl.lastAttemptMu.Lock()
	last, exists := rl.lastAttempt[key]
	rl.lastAttemptMu.Unlock()
	if !exists {
		return
	}

	elapsed := time.Since(last)
	if elapsed >= minDelay {
		return
	}
	sleep := minDelay - elapsed
	if jitterRange := int64(sleep) / 10; jitterRange > 0 {
		sleep += time.Duration(rand.Int63n(jitterRange))
	}

	rl.log.WithFields(logrus.Fields{
		"key": key, "sleep": sleep, "required_delay": minDelay, "elapsed": elapsed,
	}).Debug("Politeness delay")

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// UpdateLastRequestTime records now as the last attempt for key.
// Call it after every fetch attempt, successful or not.
func (rl *RateLimiter) UpdateLastRequestTime(key string) {
	rl.lastAttemptMu.Lock()
	rl.lastAttempt[key] = time.Now()
	rl.lastAttemptMu.Unlock()
}
