package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IntruderConfig holds configuration for failed-attempt bookkeeping.
type IntruderConfig struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

var (
	// ErrIntruderUnavailable indicates the intruder backend is unreachable.
	ErrIntruderUnavailable = errors.New("intruder backend unavailable")
)

// IntruderLimiter tracks failed verification attempts per user and per
// client address. Both counters run a rolling window: the TTL is set on the
// first failure so the counter auto-resets after the window.
type IntruderLimiter struct {
	redis  redis.UniversalClient
	config IntruderConfig
}

// NewIntruderLimiter creates a new intruder limiter.
func NewIntruderLimiter(redisClient redis.UniversalClient, cfg IntruderConfig) *IntruderLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "recover:intruder:"
	}
	return &IntruderLimiter{redis: redisClient, config: cfg}
}

func (l *IntruderLimiter) userKey(userID string) string {
	return l.config.Prefix + "u:" + userID
}

func (l *IntruderLimiter) addrKey(addr string) string {
	return l.config.Prefix + "a:" + addr
}

// Mark records one failed attempt against the user and the client address.
// Either may be empty; empty subjects are skipped.
func (l *IntruderLimiter) Mark(ctx context.Context, userID, addr string) error {
	if l == nil {
		return nil
	}
	if userID != "" {
		if err := l.bump(ctx, l.userKey(userID)); err != nil {
			return err
		}
	}
	if addr != "" {
		if err := l.bump(ctx, l.addrKey(addr)); err != nil {
			return err
		}
	}
	return nil
}

func (l *IntruderLimiter) bump(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIntruderUnavailable, err)
	}
	if count == 1 && l.config.Window > 0 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrIntruderUnavailable, err)
		}
	}
	return nil
}

// Locked reports whether the user or the client address has exceeded the
// attempt threshold inside the current window.
func (l *IntruderLimiter) Locked(ctx context.Context, userID, addr string) (bool, error) {
	if l == nil {
		return false, nil
	}
	if userID != "" {
		locked, err := l.over(ctx, l.userKey(userID))
		if err != nil || locked {
			return locked, err
		}
	}
	if addr != "" {
		return l.over(ctx, l.addrKey(addr))
	}
	return false, nil
}

func (l *IntruderLimiter) over(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrIntruderUnavailable, err)
	}
	return count >= int64(l.config.MaxAttempts), nil
}

// Reset clears the failure counter for a user after successful recovery.
func (l *IntruderLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrIntruderUnavailable, err)
	}
	return nil
}

// Count returns the current failure count for a user.
func (l *IntruderLimiter) Count(ctx context.Context, userID string) (int, error) {
	if l == nil || userID == "" {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.userKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrIntruderUnavailable, err)
	}
	return int(count), nil
}
