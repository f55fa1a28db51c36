package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/infra/notify"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/metrics"
	"github.com/vietddude/triage/internal/workflow"
)

// Notify tells the customer their issue was resolved. The delivery is guarded
// by an idempotency key of (ticket id, item id): a re-entered or re-run
// workflow that already delivered becomes a no-op that still ends notified.
type Notify struct {
	base
	notifier   notify.Notifier
	deliveries storage.DeliveryRepository
	retry      call.RetryConfig
}

// NewNotify creates the notification step.
func NewNotify(
	notifier notify.Notifier,
	deliveries storage.DeliveryRepository,
	audit workflow.Auditor,
	retry call.RetryConfig,
) *Notify {
	return &Notify{
		base:       base{name: NodeNotify, audit: audit},
		notifier:   notifier,
		deliveries: deliveries,
		retry:      retry,
	}
}

// DeliveryKey builds the idempotency key for a record.
func DeliveryKey(rec domain.Record) string {
	return rec.Ticket.ID + ":" + rec.Item.ID
}

func (s *Notify) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Ticket == nil || rec.Ticket.ID == "" {
		return rec, fmt.Errorf("no ticket for notification")
	}

	key := DeliveryKey(rec)

	// Record-level marker first: a resumed workflow that already delivered
	// skips even the store lookup.
	if _, ok := rec.Meta(domain.MetaDeliveredAt); ok {
		metrics.NotificationsDeduped.Inc()
		s.decision(rec, "skip", "delivery marker already present on record")
		rec.Status = domain.StatusNotified
		return rec, nil
	}

	delivered, err := s.deliveries.Check(ctx, key)
	if err != nil {
		return rec, fmt.Errorf("idempotency check: %w", err)
	}
	if delivered {
		metrics.NotificationsDeduped.Inc()
		s.decision(rec, "skip", fmt.Sprintf("delivery record exists for %s", key))
		rec.SetMeta(domain.MetaDeliveryKey, key)
		rec.Status = domain.StatusNotified
		return rec, nil
	}

	receipt, err := call.DoValue(ctx, "notify", s.retry, func(ctx context.Context) (notify.Receipt, error) {
		return s.notifier.Deliver(ctx, s.notification(rec))
	})
	if err != nil {
		return rec, err
	}

	// Commit synchronously before returning so a concurrent or retried
	// re-entry observes the delivery. A commit failure is a step failure even
	// though the message went out: losing the guard record is the one state
	// we must not continue from silently.
	if _, err := s.deliveries.Commit(ctx, key); err != nil {
		return rec, fmt.Errorf("record delivery %s: %w", key, err)
	}

	rec.SetMeta(domain.MetaDeliveryKey, key)
	rec.SetMetaTime(domain.MetaDeliveredAt, time.Now())
	if receipt.MessageID != "" {
		rec.SetMeta(domain.MetaDeliveryMsgID, receipt.MessageID)
	}
	rec.Status = domain.StatusNotified
	s.decision(rec, "delivered", fmt.Sprintf("notified %s via %s", rec.Item.Customer, receipt.Channel))
	return rec, nil
}

func (s *Notify) notification(rec domain.Record) notify.Notification {
	subject := rec.Item.Subject
	if subject == "" {
		subject = "your feedback"
	}
	body := fmt.Sprintf("Good news: the issue you reported (%s) has been resolved.", subject)
	if rec.Ticket.Key != "" {
		body += fmt.Sprintf(" Reference: %s.", rec.Ticket.Key)
	}
	if rec.Ticket.URL != "" {
		body += " " + rec.Ticket.URL
	}
	return notify.Notification{
		TicketID: rec.Ticket.ID,
		ItemID:   rec.Item.ID,
		Customer: rec.Item.Customer,
		Subject:  "Your feedback has been resolved",
		Body:     body,
	}
}
