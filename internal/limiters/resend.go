package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrResendUnavailable indicates the resend backend is unreachable.
	ErrResendUnavailable = errors.New("resend backend unavailable")
)

// ResendLimiter enforces a minimum gap between token deliveries for one
// recovery session. SetNX with the cooldown TTL gives an atomic
// check-and-arm in a single round trip.
type ResendLimiter struct {
	redis    redis.UniversalClient
	prefix   string
	cooldown time.Duration
}

// NewResendLimiter creates a new resend limiter.
func NewResendLimiter(redisClient redis.UniversalClient, prefix string, cooldown time.Duration) *ResendLimiter {
	if prefix == "" {
		prefix = "recover:resend:"
	}
	return &ResendLimiter{redis: redisClient, prefix: prefix, cooldown: cooldown}
}

// Allow reports whether a delivery may happen now and arms the cooldown if
// so. A false result means the cooldown is still active.
func (l *ResendLimiter) Allow(ctx context.Context, recoveryID string) (bool, error) {
	if l == nil || l.cooldown <= 0 || recoveryID == "" {
		return true, nil
	}

	ok, err := l.redis.SetNX(ctx, l.prefix+recoveryID, 1, l.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrResendUnavailable, err)
	}
	return ok, nil
}

// Clear drops an armed cooldown, used when a send fails after arming.
func (l *ResendLimiter) Clear(ctx context.Context, recoveryID string) error {
	if l == nil || recoveryID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.prefix+recoveryID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResendUnavailable, err)
	}
	return nil
}
