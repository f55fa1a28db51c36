package steps

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/infra/notify"
	"github.com/vietddude/triage/internal/infra/ticket"
)

// fastRetry keeps test retries near-instant.
var fastRetry = call.RetryConfig{
	MaxAttempts:  2,
	BaseDelay:    time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	GrowthFactor: 2.0,
}

type fakeAnalyzer struct {
	classify  func(domain.FeedbackItem) (domain.Verdict, error)
	sentiment func(domain.FeedbackItem) (domain.Verdict, error)
	score     func(domain.FeedbackItem) (domain.Verdict, error)
}

func (f *fakeAnalyzer) Classify(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	return f.classify(item)
}

func (f *fakeAnalyzer) Sentiment(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	return f.sentiment(item)
}

func (f *fakeAnalyzer) Score(ctx context.Context, item domain.FeedbackItem) (domain.Verdict, error) {
	return f.score(item)
}

type fakeTickets struct {
	create  func(ticket.Fields) (*domain.TicketRef, error)
	status  func(string) (string, error)
	creates int
	polls   int
}

func (f *fakeTickets) CreateTicket(ctx context.Context, fields ticket.Fields) (*domain.TicketRef, error) {
	f.creates++
	return f.create(fields)
}

func (f *fakeTickets) GetTicketStatus(ctx context.Context, id string) (string, error) {
	f.polls++
	return f.status(id)
}

type fakeNotifier struct {
	deliver    func(notify.Notification) (notify.Receipt, error)
	deliveries int
}

func (f *fakeNotifier) Deliver(ctx context.Context, n notify.Notification) (notify.Receipt, error) {
	f.deliveries++
	if f.deliver == nil {
		return notify.Receipt{Channel: "fake", MessageID: "msg-1"}, nil
	}
	return f.deliver(n)
}

// recordingAuditor captures decision labels for assertions.
type recordingAuditor struct {
	mu        sync.Mutex
	decisions []string
}

func (a *recordingAuditor) Action(string, string, string, string, time.Duration, error) {}

func (a *recordingAuditor) Decision(workflowID, step, label, reasoning string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, label)
}

func (a *recordingAuditor) has(label string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, d := range a.decisions {
		if d == label {
			return true
		}
	}
	return false
}

func escalatedRecord() domain.Record {
	rec := domain.NewRecord("wf-1", domain.FeedbackItem{
		ID:       "item-1",
		Customer: "ada@example.com",
		Channel:  domain.ChannelEmail,
		Subject:  "Checkout broken",
		Body:     "Cannot complete checkout since yesterday",
	})
	rec.SetVerdict(domain.Verdict{Kind: domain.VerdictPriority, Score: 75})
	rec.Status = domain.StatusAnalyzed
	return rec
}
