package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

func TestBucket_AcquireConsumesTokens(t *testing.T) {
	b := NewBucket(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("Acquire #%d failed: %v", i+1, err)
		}
	}

	err := b.Acquire(ctx)
	if err == nil {
		t.Fatal("Acquire on empty bucket should fail")
	}
	if apierr.KindOf(err) != apierr.KindRateLimited {
		t.Errorf("Kind = %v, want rate_limited", apierr.KindOf(err))
	}
}

func TestBucket_GrantExpiresAfterPeriod(t *testing.T) {
	b := NewBucket(1, time.Minute)

	current := time.Unix(1000, 0)
	b.now = func() time.Time { return current }

	ctx := context.Background()
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := b.Acquire(ctx); err == nil {
		t.Fatal("second Acquire should be blocked")
	}

	// Advance until the grant leaves the trailing period.
	current = current.Add(61 * time.Second)
	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}
}

func TestBucket_RollingPeriodNeverExceedsCapacity(t *testing.T) {
	const capacity = 5
	b := NewBucket(capacity, time.Minute)

	current := time.Unix(1000, 0)
	b.now = func() time.Time { return current }
	ctx := context.Background()

	// Grants late in one minute must count against the next: 4 grants at
	// t+59s leave exactly 1 token at t+60s.
	current = current.Add(59 * time.Second)
	for i := 0; i < 4; i++ {
		if err := b.Acquire(ctx); err != nil {
			t.Fatalf("Acquire #%d failed: %v", i+1, err)
		}
	}

	current = current.Add(1 * time.Second)
	granted := 0
	for i := 0; i < capacity; i++ {
		if err := b.Acquire(ctx); err == nil {
			granted++
		}
	}
	if granted != 1 {
		t.Errorf("grants at start of next minute = %d, want 1 (rolling budget)", granted)
	}

	// Once the early grants age out, their tokens return.
	current = current.Add(59 * time.Second)
	if got := b.Remaining(); got != capacity-1 {
		t.Errorf("Remaining after expiry = %d, want %d", got, capacity-1)
	}
}

func TestBucket_WindowNeverExceedsCapacity(t *testing.T) {
	const capacity = 50
	b := NewBucket(capacity, time.Minute)
	ctx := context.Background()

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Acquire(ctx); err == nil {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if granted != capacity {
		t.Errorf("granted = %d, want exactly %d", granted, capacity)
	}
}

func TestBucket_Refund(t *testing.T) {
	b := NewBucket(1, time.Minute)
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	b.Refund()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after Refund failed: %v", err)
	}

	// Refund never exceeds capacity.
	b.Refund()
	b.Refund()
	if got := b.Remaining(); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestBucket_AcquireCancelledContext(t *testing.T) {
	b := NewBucket(5, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Acquire(ctx); err == nil {
		t.Fatal("Acquire with cancelled context should fail")
	}
	if got := b.Remaining(); got != 5 {
		t.Errorf("cancelled Acquire consumed a token: Remaining = %d, want 5", got)
	}
}

func TestBucket_WaitBlocksUntilRefill(t *testing.T) {
	b := NewBucket(1, 30*time.Millisecond)
	ctx := context.Background()

	if err := b.Acquire(ctx); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, expected to block until the window reset", elapsed)
	}
}

func TestBucket_WaitDeadline(t *testing.T) {
	b := NewBucket(1, time.Minute)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	if err == nil {
		t.Fatal("Wait should fail when the deadline elapses")
	}
	if apierr.KindOf(err) != apierr.KindTimeout {
		t.Errorf("Kind = %v, want timeout", apierr.KindOf(err))
	}
}

func TestBucket_Defaults(t *testing.T) {
	b := NewBucket(0, 0)
	if b.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", b.capacity, DefaultCapacity)
	}
	if b.period != DefaultPeriod {
		t.Errorf("period = %v, want %v", b.period, DefaultPeriod)
	}
}
