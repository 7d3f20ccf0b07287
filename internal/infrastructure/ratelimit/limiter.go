// Package ratelimit gates outbound LLM calls with a per-owner sliding window
// backed by a shared Redis cache, so the ceiling holds across processes.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markusbegerow/local-llm-server/internal/infrastructure/logger"
)

const keyPrefix = "localllm:ratelimit:"

// Limiter admits at most `limit` requests per owner within a rolling window.
// The check-then-set is intentionally best-effort: two concurrent admissions
// for the same owner can both pass, which is acceptable for protecting a
// backend LLM server from casual overload.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration

	now func() time.Time
}

// New creates a Limiter over the given Redis client.
func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// TryAdmit records the current request and reports whether it is admitted.
// A rejected request does not mutate the stored window.
func (l *Limiter) TryAdmit(ctx context.Context, ownerID string) (bool, error) {
	key := keyPrefix + ownerID
	now := l.now()

	timestamps, err := l.load(ctx, key, now)
	if err != nil {
		return false, err
	}

	if len(timestamps) >= l.limit {
		log := logger.GetLogger()
		log.Warn().
			Str("owner_id", ownerID).
			Int("request_count", len(timestamps)).
			Msg("rate limit exceeded")
		return false, nil
	}

	timestamps = append(timestamps, now.Unix())
	payload, err := json.Marshal(timestamps)
	if err != nil {
		return false, fmt.Errorf("encode rate window: %w", err)
	}
	if err := l.rdb.Set(ctx, key, payload, l.window).Err(); err != nil {
		return false, fmt.Errorf("store rate window: %w", err)
	}

	return true, nil
}

// Remaining reports how many requests the owner may still issue within the
// current window without mutating stored state.
func (l *Limiter) Remaining(ctx context.Context, ownerID string) (int, error) {
	timestamps, err := l.load(ctx, keyPrefix+ownerID, l.now())
	if err != nil {
		return 0, err
	}

	remaining := l.limit - len(timestamps)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// load fetches the owner's admitted-request timestamps, dropping entries
// older than the window.
func (l *Limiter) load(ctx context.Context, key string, now time.Time) ([]int64, error) {
	payload, err := l.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load rate window: %w", err)
	}

	var timestamps []int64
	if err := json.Unmarshal(payload, &timestamps); err != nil {
		// Unreadable window: treat as empty rather than lock the owner out.
		return nil, nil
	}

	cutoff := now.Add(-l.window).Unix()
	fresh := timestamps[:0]
	for _, ts := range timestamps {
		if ts > cutoff {
			fresh = append(fresh, ts)
		}
	}
	return fresh, nil
}
