package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window limiter. Each request is a member of a
// sorted set scored by its arrival time; callers choose the key and budget.
type RateLimiter struct {
	client *goredis.Client
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(client *goredis.Client, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, window: window, now: time.Now}
}

// Allow records one request under key and reports whether fewer than limit
// requests were seen in the window before it.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	key = "ratelimit:" + key
	now := r.now()
	windowStart := now.Add(-r.window)

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixMilli(), 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixMilli()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, r.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline: %w", err)
	}
	return countCmd.Val() < int64(limit), nil
}
