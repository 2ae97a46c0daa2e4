package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiter_Admit(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 3,
		Window:            time.Hour,
	})

	for i := 0; i < 3; i++ {
		if !limiter.Admit("serper") {
			t.Errorf("Request %d should be admitted", i+1)
		}
	}

	if limiter.Admit("serper") {
		t.Error("Fourth request should be rejected")
	}
}

func TestLimiter_CeilingExact(t *testing.T) {
	// the configured ceiling is admitted, ceiling+1 is not
	limiter := New(Config{
		RequestsPerWindow: 360,
		Window:            time.Hour,
	})

	for i := 0; i < 360; i++ {
		if !limiter.Admit("serper") {
			t.Fatalf("Request %d should be admitted", i+1)
		}
	}

	if limiter.Admit("serper") {
		t.Error("361st request within the window should be rejected")
	}
}

func TestLimiter_IndependentKeys(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 1,
		Window:            time.Hour,
	})

	if !limiter.Admit("primary-pool") {
		t.Error("first key, first request should be admitted")
	}
	if !limiter.Admit("other-pool") {
		t.Error("second key, first request should be admitted")
	}
	if limiter.Admit("primary-pool") {
		t.Error("first key, second request should be rejected")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 1,
		Window:            50 * time.Millisecond,
	})

	if !limiter.Admit("serper") {
		t.Fatal("first request should be admitted")
	}
	if limiter.Admit("serper") {
		t.Fatal("second request inside window should be rejected")
	}

	time.Sleep(60 * time.Millisecond)

	if !limiter.Admit("serper") {
		t.Error("request after window slid should be admitted")
	}
}

func TestLimiter_Remaining(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 5,
		Window:            time.Hour,
	})

	if remaining := limiter.Remaining("serper"); remaining != 5 {
		t.Errorf("Remaining() = %d, want 5", remaining)
	}

	limiter.Admit("serper")
	limiter.Admit("serper")
	limiter.Admit("serper")

	if remaining := limiter.Remaining("serper"); remaining != 2 {
		t.Errorf("Remaining() = %d, want 2", remaining)
	}

	limiter.Admit("serper")
	limiter.Admit("serper")

	if remaining := limiter.Remaining("serper"); remaining != 0 {
		t.Errorf("Remaining() = %d, want 0", remaining)
	}
}

func TestLimiter_ResetTime(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 1,
		Window:            time.Hour,
	})

	before := time.Now()
	limiter.Admit("serper")

	resetTime := limiter.ResetTime("serper")

	expectedReset := before.Add(time.Hour)
	tolerance := 2 * time.Second

	if resetTime.Before(expectedReset.Add(-tolerance)) || resetTime.After(expectedReset.Add(tolerance)) {
		t.Errorf("ResetTime() = %v, expected around %v", resetTime, expectedReset)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	limiter := New(Config{})

	if limiter.limit != 360 {
		t.Errorf("default limit = %d, want 360", limiter.limit)
	}
	if limiter.window != time.Hour {
		t.Errorf("default window = %v, want 1h", limiter.window)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(Config{
		RequestsPerWindow: 100,
		Window:            time.Hour,
	})

	var wg sync.WaitGroup
	admitted := make(chan struct{}, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit("serper") {
				admitted <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}

	if count != 100 {
		t.Errorf("admitted %d requests concurrently, want exactly 100", count)
	}
}
