package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

var (
	// ErrRecordNotFound is returned when no record exists for a workflow id
	ErrRecordNotFound = errors.New("record not found")
)

// RecordRepository is the durable store for workflow records, keyed by
// workflow id. Records are saved after every step so a crashed process can
// resume from the last persisted state.
type RecordRepository interface {
	// Save creates or replaces the record
	Save(ctx context.Context, rec *domain.Record) error

	// Get retrieves a record by workflow id
	Get(ctx context.Context, workflowID string) (*domain.Record, error)

	// ListByStatus retrieves all records currently in the given status
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Record, error)

	// DeleteTerminalBefore removes terminal records last updated before cutoff
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeliveryRepository is the idempotency store guarding side-effecting
// notifications. Commit is an atomic check-and-set on a single key.
type DeliveryRepository interface {
	// Check reports whether a delivery record exists for the key
	Check(ctx context.Context, key string) (bool, error)

	// Commit writes the delivery record. Returns false when a record for the
	// key already existed, in which case nothing was written.
	Commit(ctx context.Context, key string) (bool, error)
}

// DelayQueue schedules workflow re-entries at a future time. The engine's
// dispatcher pops due entries instead of sleeping inside a workflow.
type DelayQueue interface {
	// Schedule enqueues a workflow re-entry at the given time, replacing any
	// existing entry for the same workflow
	Schedule(ctx context.Context, workflowID string, due time.Time) error

	// PopDue removes and returns up to limit workflow ids due at or before now
	PopDue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
