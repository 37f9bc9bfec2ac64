package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arklim/timeclock-auth/internal/core/port"
)

// SlidingWindowConfig defines configuration for the sliding window limiter.
type SlidingWindowConfig struct {
	KeyPrefix string
}

// RateLimitRepository keeps request timestamps in Redis sorted sets, one set
// per key, scored in Unix milliseconds.
type RateLimitRepository struct {
	client *redis.Client
	cfg    SlidingWindowConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client *redis.Client, cfg SlidingWindowConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Allow trims entries older than window and records the request at now in a
// single MULTI block. When the window then holds more than limit entries the
// request is rejected and its entry removed again, so concurrent callers can
// never be admitted past limit.
func (r *RateLimitRepository) Allow(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (port.ThrottleDecision, error) {
	if window <= 0 {
		return port.ThrottleDecision{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.ThrottleDecision{}, errors.New("limit must be positive")
	}

	key := r.key(identifier)
	threshold := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	member := redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixMilli(), 10) + ":" + uuid.NewString(),
	}

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+threshold)
		pipe.ZAdd(ctx, key, member)
		card = pipe.ZCard(ctx, key)
		oldest = pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.Expire(ctx, key, window)
		return nil
	}); err != nil {
		return port.ThrottleDecision{}, fmt.Errorf("redis record attempt: %w", err)
	}

	count := int(card.Val())
	resetAt := now.Add(window)
	if entries := oldest.Val(); len(entries) > 0 {
		resetAt = time.UnixMilli(int64(entries[0].Score)).Add(window)
	}

	decision := port.ThrottleDecision{Limit: limit, ResetAt: resetAt}
	if count > limit {
		if err := r.client.ZRem(ctx, key, member.Member).Err(); err != nil {
			return decision, fmt.Errorf("redis roll back attempt: %w", err)
		}
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = limit - count
	return decision, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RequestThrottle = (*RateLimitRepository)(nil)
