package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const delayQueueKey = "triage:poll_queue"

// DelayQueue implements storage.DelayQueue on a Redis sorted set scored by
// the due unix time. ZADD replaces the score of an existing member, so
// re-scheduling a workflow moves its single entry.
type DelayQueue struct {
	rdb *redis.Client
}

// NewDelayQueue creates a Redis-backed delay queue.
func NewDelayQueue(c *Client) *DelayQueue {
	return &DelayQueue{rdb: c.rdb}
}

// Schedule enqueues a workflow re-entry at the given time.
func (q *DelayQueue) Schedule(ctx context.Context, workflowID string, due time.Time) error {
	err := q.rdb.ZAdd(ctx, delayQueueKey, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: workflowID,
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// PopDue removes and returns up to limit workflow ids due at or before now.
func (q *DelayQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, delayQueueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := q.rdb.ZRem(ctx, delayQueueKey, members...).Err(); err != nil {
		return nil, fmt.Errorf("zrem failed: %w", err)
	}
	return ids, nil
}
