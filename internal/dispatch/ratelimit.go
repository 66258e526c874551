package dispatch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter enforces per-subscriber rolling hourly and daily notification
// caps. Reservations are taken under one lock so concurrent deliveries can
// never race a subscriber past its cap.
type RateLimiter struct {
	clock clockwork.Clock

	mu     sync.Mutex
	events map[string][]time.Time // per subscriber, reservation times within the last day
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter(clock clockwork.Clock) *RateLimiter {
	return &RateLimiter{
		clock:  clock,
		events: make(map[string][]time.Time),
	}
}

// Reserve records one notification against the subscriber's caps and
// reports whether it fits. A cap of zero or below means unlimited for that
// window. A rejected reservation consumes nothing.
func (l *RateLimiter) Reserve(subscriberID string, maxPerHour, maxPerDay int) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	events := pruneOlderThan(l.events[subscriberID], now.Add(-24*time.Hour))

	if maxPerDay > 0 && len(events) >= maxPerDay {
		l.events[subscriberID] = events
		return false
	}
	if maxPerHour > 0 && countSince(events, now.Add(-time.Hour)) >= maxPerHour {
		l.events[subscriberID] = events
		return false
	}

	l.events[subscriberID] = append(events, now)
	return true
}

// pruneOlderThan drops reservations before the cutoff. Events are appended
// in time order, so the first retained index bounds the rest.
func pruneOlderThan(events []time.Time, cutoff time.Time) []time.Time {
	for i, t := range events {
		if !t.Before(cutoff) {
			return events[i:]
		}
	}
	return nil
}

func countSince(events []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range events {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}
