package steps

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/workflow"
)

// Collect normalizes the incoming item and opens the workflow.
type Collect struct {
	base
}

// NewCollect creates the collect step.
func NewCollect(audit workflow.Auditor) *Collect {
	return &Collect{base: base{name: NodeCollect, audit: audit}}
}

func (s *Collect) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Item.ID == "" {
		rec.Item.ID = uuid.NewString()
	}
	if rec.Item.ReceivedAt.IsZero() {
		rec.Item.ReceivedAt = time.Now().UTC()
	}
	if rec.Item.Channel == "" {
		rec.Item.Channel = domain.ChannelOther
	}
	rec.Status = domain.StatusCollected
	return rec, nil
}
