package steps

import (
	"context"
	"fmt"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/infra/ticket"
	"github.com/vietddude/triage/internal/workflow"
)

// CreateTicket opens a tracking ticket for an escalated item. A ticket id,
// once set, is immutable; re-entering the step with a ticket present is a
// no-op so retries cannot open duplicates.
type CreateTicket struct {
	base
	svc     TicketService
	retry   call.RetryConfig
	project string
}

// NewCreateTicket creates the ticket-creation step.
func NewCreateTicket(svc TicketService, audit workflow.Auditor, retry call.RetryConfig, project string) *CreateTicket {
	return &CreateTicket{
		base:    base{name: NodeCreateTicket, audit: audit},
		svc:     svc,
		retry:   retry,
		project: project,
	}
}

func (s *CreateTicket) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Ticket != nil && rec.Ticket.ID != "" {
		s.decision(rec, "skip", fmt.Sprintf("ticket %s already exists", rec.Ticket.ID))
		rec.Status = domain.StatusTicketCreated
		return rec, nil
	}

	fields := s.fields(rec)
	ref, err := call.DoValue(ctx, "ticket", s.retry, func(ctx context.Context) (*domain.TicketRef, error) {
		return s.svc.CreateTicket(ctx, fields)
	})
	if err != nil {
		return rec, err
	}
	if ref == nil || ref.ID == "" {
		return rec, fmt.Errorf("ticket service returned no ticket id")
	}

	rec.Ticket = ref
	rec.Status = domain.StatusTicketCreated
	s.decision(rec, "created", fmt.Sprintf("ticket %s (%s) opened", ref.ID, ref.Key))
	return rec, nil
}

func (s *CreateTicket) fields(rec domain.Record) ticket.Fields {
	f := ticket.Fields{
		Project:     s.project,
		Summary:     rec.Item.Subject,
		Description: rec.Item.Body,
		Labels:      []string{"feedback", string(rec.Item.Channel)},
	}
	if f.Summary == "" {
		f.Summary = fmt.Sprintf("Customer feedback %s", rec.Item.ID)
	}
	if v, ok := rec.Verdict(domain.VerdictClassification); ok {
		f.Labels = append(f.Labels, v.Label)
	}
	if score, ok := rec.PriorityScore(); ok {
		switch {
		case score >= 80:
			f.Priority = "critical"
		case score >= 65:
			f.Priority = "high"
		default:
			f.Priority = "normal"
		}
	}
	return f
}
