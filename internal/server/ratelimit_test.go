package server

import (
	"testing"
	"time"
)

func TestIPLimiterDisabled(t *testing.T) {
	limiter := newIPLimiter(0, time.Minute)

	for range 100 {
		if !limiter.allow("10.0.0.1", time.Now()) {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestIPLimiterPerAddress(t *testing.T) {
	limiter := newIPLimiter(2, time.Hour)
	now := time.Now()

	if !limiter.allow("10.0.0.1", now) || !limiter.allow("10.0.0.1", now) {
		t.Fatal("burst requests rejected")
	}
	if limiter.allow("10.0.0.1", now) {
		t.Error("third request within the window allowed")
	}
	if !limiter.allow("10.0.0.2", now) {
		t.Error("other address must have its own bucket")
	}
}

func TestIPLimiterSweep(t *testing.T) {
	limiter := newIPLimiter(1, time.Minute)
	now := time.Now()

	limiter.allow("10.0.0.1", now)
	limiter.allow("10.0.0.2", now.Add(limiterIdleAfter))

	if remaining := limiter.sweep(now.Add(limiterIdleAfter + time.Second)); remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}
