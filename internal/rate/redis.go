package rate

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps failure timestamps in a sorted set per email, scored by
// unix nanoseconds. Window pruning happens on read and write, and keys carry
// a TTL of one window so abandoned emails expire on their own.
type RedisTracker struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRedisTracker builds a Redis-backed tracker.
func NewRedisTracker(client *redis.Client, cfg Config) *RedisTracker {
	cfg.applyDefaults()
	return &RedisTracker{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (t *RedisTracker) key(email string) string {
	return fmt.Sprintf("%s:lockout:%s", t.cfg.Prefix, email)
}

// Locked reports whether email has reached the failure budget inside the
// window.
func (t *RedisTracker) Locked(ctx context.Context, email string) (bool, error) {
	count, err := t.FailureCount(ctx, email)
	if err != nil {
		return false, err
	}
	return count >= t.cfg.MaxFailures, nil
}

// RecordFailure adds a failure timestamp and refreshes the key TTL.
func (t *RedisTracker) RecordFailure(ctx context.Context, email string) error {
	key := t.key(email)
	now := t.now()
	cutoff := now.Add(-t.cfg.Window).UnixNano()

	// The sequence suffix keeps members unique when two failures land in
	// the same nanosecond.
	member := fmt.Sprintf("%d-%d", now.UnixNano(), t.seq.Add(1))

	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	pipe.Expire(ctx, key, t.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate: record failure: %w", err)
	}
	return nil
}

// RecordSuccess clears all recorded failures for email.
func (t *RedisTracker) RecordSuccess(ctx context.Context, email string) error {
	if err := t.client.Del(ctx, t.key(email)).Err(); err != nil {
		return fmt.Errorf("rate: record success: %w", err)
	}
	return nil
}

// FailureCount prunes expired entries and reports the in-window count.
func (t *RedisTracker) FailureCount(ctx context.Context, email string) (int, error) {
	key := t.key(email)
	cutoff := t.now().Add(-t.cfg.Window).UnixNano()

	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate: failure count: %w", err)
	}
	return int(card.Val()), nil
}
