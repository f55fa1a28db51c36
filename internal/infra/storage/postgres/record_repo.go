package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// RecordRepo implements storage.RecordRepository using PostgreSQL. The full
// record is stored as JSONB with status and item id lifted into columns for
// querying.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL record repository.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Save upserts the record keyed by workflow id.
func (r *RecordRepo) Save(ctx context.Context, rec *domain.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	const query = `
		INSERT INTO records (workflow_id, item_id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (workflow_id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.WorkflowID, rec.Item.ID, string(rec.Status), data, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves a record by workflow id.
func (r *RecordRepo) Get(ctx context.Context, workflowID string) (*domain.Record, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE workflow_id = $1`, workflowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// ListByStatus retrieves all records in the given status.
func (r *RecordRepo) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM records WHERE status = $1 ORDER BY updated_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var recs []*domain.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var rec domain.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// DeleteTerminalBefore removes terminal records last updated before cutoff.
func (r *RecordRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM records
		WHERE updated_at < $1
		  AND status IN ('completed', 'failed', 'monitoring_timeout', 'analyzed', 'notified')
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	return res.RowsAffected()
}
