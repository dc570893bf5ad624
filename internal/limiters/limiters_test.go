package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestIntruderLockAfterThreshold(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewIntruderLimiter(rdb, IntruderConfig{
		Prefix:      "i:",
		MaxAttempts: 3,
		Window:      time.Minute,
	})

	for i := 0; i < 2; i++ {
		if err := limiter.Mark(ctx, "u1", "203.0.113.9"); err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
	}
	locked, err := limiter.Locked(ctx, "u1", "203.0.113.9")
	if err != nil || locked {
		t.Fatalf("expected unlocked below threshold, locked=%v err=%v", locked, err)
	}

	if err := limiter.Mark(ctx, "u1", "203.0.113.9"); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	locked, err = limiter.Locked(ctx, "u1", "203.0.113.9")
	if err != nil || !locked {
		t.Fatalf("expected locked at threshold, locked=%v err=%v", locked, err)
	}

	// Either subject alone trips the check.
	locked, err = limiter.Locked(ctx, "u1", "")
	if err != nil || !locked {
		t.Fatalf("expected user lock, locked=%v err=%v", locked, err)
	}
	locked, err = limiter.Locked(ctx, "someone-else", "203.0.113.9")
	if err != nil || !locked {
		t.Fatalf("expected address lock, locked=%v err=%v", locked, err)
	}
}

func TestIntruderWindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewIntruderLimiter(rdb, IntruderConfig{
		Prefix:      "i:",
		MaxAttempts: 1,
		Window:      time.Minute,
	})

	if err := limiter.Mark(ctx, "u1", ""); err != nil {
		t.Fatalf("Mark failed: %v", err)
	}
	locked, err := limiter.Locked(ctx, "u1", "")
	if err != nil || !locked {
		t.Fatalf("expected locked, locked=%v err=%v", locked, err)
	}

	mr.FastForward(2 * time.Minute)

	locked, err = limiter.Locked(ctx, "u1", "")
	if err != nil || locked {
		t.Fatalf("expected window rollover, locked=%v err=%v", locked, err)
	}
}

func TestIntruderResetAndCount(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewIntruderLimiter(rdb, IntruderConfig{
		Prefix:      "i:",
		MaxAttempts: 5,
		Window:      time.Minute,
	})

	for i := 0; i < 3; i++ {
		if err := limiter.Mark(ctx, "u1", ""); err != nil {
			t.Fatalf("Mark failed: %v", err)
		}
	}
	count, err := limiter.Count(ctx, "u1")
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d err=%v", count, err)
	}

	if err := limiter.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	count, err = limiter.Count(ctx, "u1")
	if err != nil || count != 0 {
		t.Fatalf("expected count 0 after reset, got %d err=%v", count, err)
	}
}

func TestIntruderSkipsEmptySubjects(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewIntruderLimiter(rdb, IntruderConfig{
		Prefix:      "i:",
		MaxAttempts: 1,
		Window:      time.Minute,
	})

	if err := limiter.Mark(ctx, "", ""); err != nil {
		t.Fatalf("Mark with empty subjects failed: %v", err)
	}
	if got := len(mr.Keys()); got != 0 {
		t.Fatalf("expected no keys written, got %d", got)
	}
}

func TestResendCooldown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewResendLimiter(rdb, "r:", time.Minute)

	ok, err := limiter.Allow(ctx, "rec1")
	if err != nil || !ok {
		t.Fatalf("first delivery must be allowed, ok=%v err=%v", ok, err)
	}
	ok, err = limiter.Allow(ctx, "rec1")
	if err != nil || ok {
		t.Fatalf("second delivery inside the cooldown must be blocked, ok=%v err=%v", ok, err)
	}

	// A different session is unaffected.
	ok, err = limiter.Allow(ctx, "rec2")
	if err != nil || !ok {
		t.Fatalf("other session must be allowed, ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Minute)

	ok, err = limiter.Allow(ctx, "rec1")
	if err != nil || !ok {
		t.Fatalf("delivery after the cooldown must be allowed, ok=%v err=%v", ok, err)
	}
}

func TestResendClear(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewResendLimiter(rdb, "r:", time.Minute)

	if _, err := limiter.Allow(ctx, "rec1"); err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if err := limiter.Clear(ctx, "rec1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	ok, err := limiter.Allow(ctx, "rec1")
	if err != nil || !ok {
		t.Fatalf("expected re-arm after clear, ok=%v err=%v", ok, err)
	}
}

func TestResendZeroCooldownAlwaysAllows(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	limiter := NewResendLimiter(rdb, "r:", 0)

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "rec1")
		if err != nil || !ok {
			t.Fatalf("zero cooldown must always allow, ok=%v err=%v", ok, err)
		}
	}
}
