package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const deliveryKeyPrefix = "triage:delivery:"

// DeliveryStore implements storage.DeliveryRepository on Redis. SETNX makes
// the commit an atomic check-and-set on a single key.
type DeliveryStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDeliveryStore creates a Redis-backed idempotency store. A zero ttl
// keeps delivery records forever.
func NewDeliveryStore(c *Client, ttl time.Duration) *DeliveryStore {
	return &DeliveryStore{rdb: c.rdb, ttl: ttl}
}

// Check reports whether a delivery record exists for the key.
func (s *DeliveryStore) Check(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, deliveryKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("exists failed: %w", err)
	}
	return n > 0, nil
}

// Commit writes the delivery record. Returns false when the key already
// existed.
func (s *DeliveryStore) Commit(ctx context.Context, key string) (bool, error) {
	set, err := s.rdb.SetNX(ctx, deliveryKeyPrefix+key,
		time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return set, nil
}
