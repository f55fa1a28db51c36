// Package steps implements the triage pipeline stages and assembles them
// into the workflow graph.
package steps

import (
	"context"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/ticket"
	"github.com/vietddude/triage/internal/workflow"
)

// Node names. Timestamps and audit entries are keyed by these.
const (
	NodeCollect      = "collect"
	NodeClassify     = "analyze_classification"
	NodeSentiment    = "analyze_sentiment"
	NodeScore        = "score"
	NodeCreateTicket = "create_ticket"
	NodeMonitor      = "monitor"
	NodeNotify       = "notify"
)

// Analyzer produces structured verdicts for a feedback item. Implementations
// call the model service; a failure surfaces as a normal error and is
// captured by the step wrapper.
type Analyzer interface {
	Classify(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error)
	Sentiment(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error)
	Score(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error)
}

// TicketService creates and reads external tracking tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, fields ticket.Fields) (*domain.TicketRef, error)
	GetTicketStatus(ctx context.Context, id string) (string, error)
}

// base carries the pieces every step shares.
type base struct {
	name  string
	audit workflow.Auditor
}

func (b base) Name() string { return b.name }

// decision emits an audit entry explaining a choice. Metadata only.
func (b base) decision(rec domain.Record, label, reasoning string) {
	if b.audit != nil {
		b.audit.Decision(rec.WorkflowID, b.name, label, reasoning)
	}
}
