package infra

import (
	"testing"
	"time"

	"cofre-gateway/middleware/ratelimit/domain"
)

func TestBucketStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewBucketStore(mustRate(t, 10, time.Second))

	l1 := s.GetString("k")
	l2 := s.GetString("k")
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
}

func TestBucketStore_RejectsWhenBucketEmpty(t *testing.T) {
	// 1 por hora: o primeiro take esvazia o balde
	s := NewBucketStore(mustRate(t, 1, time.Hour))

	if dec := s.Get(domain.Key("k")).Take(); !dec.Allowed {
		t.Fatalf("expected first take to be admitted")
	}

	dec := s.Get(domain.Key("k")).Take()
	if dec.Allowed {
		t.Fatalf("expected second immediate take to be rejected")
	}
	if dec.RetryAfter <= 0 {
		t.Fatalf("expected a positive RetryAfter hint, got %s", dec.RetryAfter)
	}
}

func TestBucketStore_CleanupRemovesIdleEntries(t *testing.T) {
	clk := newFakeClock()
	s := NewBucketStore(mustRate(t, 10, time.Second),
		WithBucketIdleTTL(time.Minute),
		WithBucketCleanupEvery(0),
		WithBucketNow(clk.Now),
	)

	before := s.GetString("k")
	clk.Advance(2 * time.Minute)

	s.Cleanup()

	after := s.GetString("k")
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestBucketStore_CleanupKeepsRecentEntries(t *testing.T) {
	clk := newFakeClock()
	s := NewBucketStore(mustRate(t, 10, time.Second),
		WithBucketIdleTTL(time.Minute),
		WithBucketCleanupEvery(0),
		WithBucketNow(clk.Now),
	)

	before := s.GetString("k")
	clk.Advance(30 * time.Second)

	s.Cleanup()

	after := s.GetString("k")
	if before != after {
		t.Fatalf("expected recently used limiter to survive cleanup")
	}
}
