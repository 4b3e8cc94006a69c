package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window request cap per key using Redis
// INCR+EXPIRE, per spec §4.3. One RateLimiter instance is configured per
// bucket (login, global, etc.) with its own max/window.
type RateLimiter struct {
	redis  *redis.Client
	bucket string
	max    int
	window time.Duration
}

// NewRateLimiter creates a rate limiter for bucket, keyed independently per
// identity (IP, user ID, ...) passed to Check/Record.
func NewRateLimiter(rdb *redis.Client, bucket string, max int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: rdb, bucket: bucket, max: max, window: window}
}

// ParseRate parses a "N/unit" rate spec (e.g. "500/hour", "10/min") into a
// max count and window duration.
func ParseRate(spec string) (int, time.Duration, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rate spec %q, expected N/unit", spec)
	}

	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("invalid rate count in %q", spec)
	}

	var window time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "sec", "second", "seconds":
		window = time.Second
	case "min", "minute", "minutes":
		window = time.Minute
	case "hour", "hours":
		window = time.Hour
	case "day", "days":
		window = 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("unknown rate unit in %q", spec)
	}

	return n, window, nil
}

// RateLimitResult holds the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Check returns whether key (an IP, user ID, or similar identity) is
// currently within the limit, without consuming a slot.
func (rl *RateLimiter) Check(ctx context.Context, key string) (*RateLimitResult, error) {
	redisKey := rl.redisKey(key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("checking rate limit: %w", err)
	}

	if count >= rl.max {
		ttl, err := rl.redis.TTL(ctx, redisKey).Result()
		if err != nil {
			return nil, fmt.Errorf("getting rate limit TTL: %w", err)
		}
		return &RateLimitResult{Allowed: false, RetryAt: time.Now().Add(ttl)}, nil
	}

	return &RateLimitResult{Allowed: true, Remaining: rl.max - count}, nil
}

// Record consumes one slot for key, starting a new fixed window on the
// first call.
func (rl *RateLimiter) Record(ctx context.Context, key string) error {
	redisKey := rl.redisKey(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return fmt.Errorf("recording rate limit: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.window).Err(); err != nil {
			return fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}
	return nil
}

// Reset clears the counter for key (e.g. on successful login).
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.redisKey(key)).Err()
}

func (rl *RateLimiter) redisKey(key string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rl.bucket, key)
}
