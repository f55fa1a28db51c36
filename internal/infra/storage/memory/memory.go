// Package memory provides in-memory implementations of the storage
// interfaces for tests and single-process development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// Store holds all in-memory state.
type Store struct {
	mu         sync.RWMutex
	records    map[string]*domain.Record
	deliveries map[string]time.Time
	queue      map[string]time.Time // workflow id -> due
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:    make(map[string]*domain.Record),
		deliveries: make(map[string]time.Time),
		queue:      make(map[string]time.Time),
	}
}

// -----------------------------------------------------------------------------
// Record Repository
// -----------------------------------------------------------------------------

// RecordRepo implements storage.RecordRepository in memory.
type RecordRepo struct {
	store *Store
}

// NewRecordRepo creates an in-memory record repository.
func NewRecordRepo(store *Store) *RecordRepo {
	return &RecordRepo{store: store}
}

func (r *RecordRepo) Save(ctx context.Context, rec *domain.Record) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := rec.Clone()
	r.store.records[rec.WorkflowID] = &clone
	return nil
}

func (r *RecordRepo) Get(ctx context.Context, workflowID string) (*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.records[workflowID]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	clone := rec.Clone()
	return &clone, nil
}

func (r *RecordRepo) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Record
	for _, rec := range r.store.records {
		if rec.Status == status {
			clone := rec.Clone()
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *RecordRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, rec := range r.store.records {
		if rec.Status.Terminal() && rec.UpdatedAt.Before(cutoff) {
			delete(r.store.records, id)
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Delivery Repository (idempotency guard)
// -----------------------------------------------------------------------------

// DeliveryRepo implements storage.DeliveryRepository in memory.
type DeliveryRepo struct {
	store *Store
}

// NewDeliveryRepo creates an in-memory delivery repository.
func NewDeliveryRepo(store *Store) *DeliveryRepo {
	return &DeliveryRepo{store: store}
}

func (r *DeliveryRepo) Check(ctx context.Context, key string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, ok := r.store.deliveries[key]
	return ok, nil
}

func (r *DeliveryRepo) Commit(ctx context.Context, key string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.deliveries[key]; ok {
		return false, nil
	}
	r.store.deliveries[key] = time.Now().UTC()
	return true, nil
}

// -----------------------------------------------------------------------------
// Delay Queue
// -----------------------------------------------------------------------------

// DelayQueue implements storage.DelayQueue in memory.
type DelayQueue struct {
	store *Store
}

// NewDelayQueue creates an in-memory delay queue.
func NewDelayQueue(store *Store) *DelayQueue {
	return &DelayQueue{store: store}
}

func (q *DelayQueue) Schedule(ctx context.Context, workflowID string, due time.Time) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	q.store.queue[workflowID] = due
	return nil
}

func (q *DelayQueue) PopDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()

	type entry struct {
		id  string
		due time.Time
	}
	var due []entry
	for id, t := range q.store.queue {
		if !t.After(now) {
			due = append(due, entry{id, t})
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	ids := make([]string, 0, len(due))
	for _, e := range due {
		delete(q.store.queue, e.id)
		ids = append(ids, e.id)
	}
	return ids, nil
}
