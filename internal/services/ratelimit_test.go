package services

import (
	"errors"
	"testing"
	"time"
)

// testClock returns a limiter with an adjustable clock so window and spacing
// behavior can be driven without sleeping.
func testClock(l *RateLimiter) func(d time.Duration) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.Now = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiter_WindowCap(t *testing.T) {
	l := NewRateLimiter(600*time.Second, 5, 10*time.Second)
	advance := testClock(l)

	for i := 0; i < 5; i++ {
		if err := l.Allow(1); err != nil {
			t.Fatalf("message %d rejected: %v", i+1, err)
		}
		advance(11 * time.Second)
	}
	if err := l.Allow(1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("sixth message in window: err = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_MinSpacing(t *testing.T) {
	l := NewRateLimiter(600*time.Second, 5, 10*time.Second)
	advance := testClock(l)

	if err := l.Allow(1); err != nil {
		t.Fatalf("first message: %v", err)
	}
	advance(3 * time.Second)
	if err := l.Allow(1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("message 3s later: err = %v, want ErrRateLimited", err)
	}
	advance(8 * time.Second)
	if err := l.Allow(1); err != nil {
		t.Fatalf("message after full interval: %v", err)
	}
}

func TestRateLimiter_WindowDrains(t *testing.T) {
	l := NewRateLimiter(600*time.Second, 2, time.Second)
	advance := testClock(l)

	l.Allow(1)
	advance(2 * time.Second)
	l.Allow(1)
	if err := l.Allow(1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("window should be full")
	}

	// Once the first timestamp falls out of the window a slot frees up.
	advance(599 * time.Second)
	if err := l.Allow(1); err != nil {
		t.Fatalf("message after window drained: %v", err)
	}
}

func TestRateLimiter_WindowRejectionKeepsSpacingToken(t *testing.T) {
	l := NewRateLimiter(600*time.Second, 1, 300*time.Second)
	advance := testClock(l)

	if err := l.Allow(1); err != nil {
		t.Fatalf("first message: %v", err)
	}
	advance(595 * time.Second)
	// Window is full: rejected without touching the spacing bucket.
	if err := l.Allow(1); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected window rejection")
	}

	advance(6 * time.Second)
	// The window drained. Had the rejection above consumed the spacing
	// token, another 300s wait would be needed; it did not.
	if err := l.Allow(1); err != nil {
		t.Fatalf("message after drain: %v", err)
	}
}

func TestRateLimiter_PerUserIsolation(t *testing.T) {
	l := NewRateLimiter(600*time.Second, 1, 10*time.Second)
	testClock(l)

	if err := l.Allow(1); err != nil {
		t.Fatalf("user 1: %v", err)
	}
	if err := l.Allow(2); err != nil {
		t.Fatalf("user 2 should not share user 1's window: %v", err)
	}
}

func TestNewRateLimiter_ZeroValuesFallBack(t *testing.T) {
	l := NewRateLimiter(0, 0, 0)
	if l.Window != DefaultRateWindow || l.Max != DefaultRateMax || l.MinInterval != DefaultMinInterval {
		t.Errorf("defaults not applied: %+v", l)
	}
}
