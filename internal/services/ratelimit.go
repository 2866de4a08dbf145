// Package services – RateLimiter
//
// Admission control for outbound user messages. Two independent checks run
// per message:
//
//  1. a sliding window: at most Max accepted messages per Window, with
//     timestamps older than the window pruned before counting;
//  2. minimum spacing: at least MinInterval between accepted messages,
//     enforced with a burst-1 token bucket (golang.org/x/time/rate).
//
// The window check runs first and a window rejection never consumes a
// spacing token. Only full acceptance records the timestamp for both checks.
//
// The limiter is process-local and owned by the dispatcher; idle per-user
// entries are evicted opportunistically to bound memory.
package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiting defaults, matching the deployed bot's policy.
const (
	DefaultRateWindow  = 600 * time.Second
	DefaultRateMax     = 5
	DefaultMinInterval = 10 * time.Second

	// idle entries older than this are dropped during lookups
	rateEntryTTL = 30 * time.Minute
	// run eviction every N allows
	rateCleanupEvery = 256
)

// userRate holds one user's admission state.
type userRate struct {
	accepted []time.Time   // accepted-message timestamps inside the window
	spacing  *rate.Limiter // burst-1 bucket refilling every MinInterval
	lastSeen time.Time
}

// RateLimiter applies the sliding-window and min-spacing checks per user.
// Safe for concurrent use, though the dispatcher is its only writer.
type RateLimiter struct {
	Window      time.Duration
	Max         int
	MinInterval time.Duration

	// Now is the clock; overridden in tests. Defaults to time.Now.
	Now func() time.Time

	mu     sync.Mutex
	users  map[int64]*userRate
	allowN uint64
}

// NewRateLimiter constructs a RateLimiter with the given policy. Zero values
// fall back to the defaults above.
func NewRateLimiter(window time.Duration, max int, minInterval time.Duration) *RateLimiter {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if max <= 0 {
		max = DefaultRateMax
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &RateLimiter{
		Window:      window,
		Max:         max,
		MinInterval: minInterval,
		Now:         time.Now,
		users:       make(map[int64]*userRate),
	}
}

// Allow runs both admission checks for the user identified by chatID.
// It returns ErrRateLimited when either check fails; on success the message
// is recorded as accepted.
func (l *RateLimiter) Allow(chatID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()

	u, ok := l.users[chatID]
	if !ok {
		u = &userRate{spacing: rate.NewLimiter(rate.Every(l.MinInterval), 1)}
		l.users[chatID] = u
	}
	u.lastSeen = now

	// Prune before counting so a full window drains as time passes.
	cutoff := now.Add(-l.Window)
	kept := u.accepted[:0]
	for _, ts := range u.accepted {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	u.accepted = kept

	if len(u.accepted) >= l.Max {
		return ErrRateLimited
	}

	// Spacing runs second so a window rejection does not consume the token.
	if !u.spacing.AllowN(now, 1) {
		return ErrRateLimited
	}

	u.accepted = append(u.accepted, now)

	l.allowN++
	if l.allowN%rateCleanupEvery == 0 {
		l.evictIdle(now)
	}
	return nil
}

// evictIdle drops entries not seen within rateEntryTTL. Caller holds mu.
func (l *RateLimiter) evictIdle(now time.Time) {
	for id, u := range l.users {
		if now.Sub(u.lastSeen) > rateEntryTTL {
			delete(l.users, id)
		}
	}
}
