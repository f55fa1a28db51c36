package postgres

import (
	"context"
	"fmt"
	"time"
)

// DeliveryRepo implements storage.DeliveryRepository using PostgreSQL.
// The insert-on-conflict commit is the atomic check-and-set the idempotency
// guard relies on.
type DeliveryRepo struct {
	db *DB
}

// NewDeliveryRepo creates a new PostgreSQL delivery repository.
func NewDeliveryRepo(db *DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Check reports whether a delivery record exists for the key.
func (r *DeliveryRepo) Check(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM deliveries WHERE delivery_key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery: %w", err)
	}
	return exists, nil
}

// Commit writes the delivery record. Returns false when the key already
// existed.
func (r *DeliveryRepo) Commit(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO deliveries (delivery_key, delivered_at) VALUES ($1, $2)
		 ON CONFLICT (delivery_key) DO NOTHING`,
		key, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to commit delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
