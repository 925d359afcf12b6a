package session

import (
	"sync"
	"time"
)

// rateLimiter enforces a sliding-window cap on inbound message rate.
// The tracked timestamp list is additionally bounded by maxTracked so
// memory stays fixed under pathological timing patterns.
type rateLimiter struct {
	mu           sync.Mutex
	window       time.Duration
	maxPerWindow int
	maxTracked   int
	timestamps   []time.Time
}

func newRateLimiter(window time.Duration, maxPerWindow, maxTracked int) *rateLimiter {
	return &rateLimiter{
		window:       window,
		maxPerWindow: maxPerWindow,
		maxTracked:   maxTracked,
	}
}

// Allow records an arrival at time now and reports whether the session
// is within its rate budget. A false result means the cap was already
// reached within the window; the arrival is not recorded.
func (l *rateLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Evict timestamps that fell out of the window.
	cutoff := now.Add(-l.window)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) >= l.maxPerWindow {
		return false
	}

	// Bound the tracked list independently of the window.
	if len(l.timestamps) >= l.maxTracked {
		l.timestamps = l.timestamps[1:]
	}
	l.timestamps = append(l.timestamps, now)
	return true
}
