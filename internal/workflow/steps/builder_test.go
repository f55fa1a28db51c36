package steps

import (
	"context"
	"testing"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage/memory"
	"github.com/vietddude/triage/internal/infra/ticket"
	"github.com/vietddude/triage/internal/workflow"
)

func testDeps() Deps {
	store := memory.NewStore()
	return Deps{
		Analyzer: &fakeAnalyzer{
			classify:  func(domain.FeedbackItem) (domain.Verdict, error) { return domain.Verdict{Kind: domain.VerdictClassification, Label: "bug"}, nil },
			sentiment: func(domain.FeedbackItem) (domain.Verdict, error) { return domain.Verdict{Kind: domain.VerdictSentiment, Label: "negative"}, nil },
			score:     func(domain.FeedbackItem) (domain.Verdict, error) { return domain.Verdict{Kind: domain.VerdictPriority, Score: 60}, nil },
		},
		Tickets: &fakeTickets{
			create: func(ticket.Fields) (*domain.TicketRef, error) { return &domain.TicketRef{ID: "1"}, nil },
			status: func(string) (string, error) { return "Open", nil },
		},
		Notifier:   &fakeNotifier{},
		Deliveries: memory.NewDeliveryRepo(store),
		Retry:      RetryPolicies{Model: fastRetry, Ticket: fastRetry, Notify: fastRetry},
		Monitor:    testMonitorConfig(),
		Project:    "FEED",
	}
}

func TestBuildGraph_Validates(t *testing.T) {
	g := BuildGraph(testDeps(), 50)
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if g.Start() != NodeCollect {
		t.Errorf("start = %s, want collect", g.Start())
	}
}

func TestBuildGraph_ScoreRouting(t *testing.T) {
	g := BuildGraph(testDeps(), 50)

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	rec.SetVerdict(domain.Verdict{Kind: domain.VerdictPriority, Score: 30})
	edge, ok := g.Next(NodeScore, rec)
	if !ok || edge.To != workflow.End {
		t.Errorf("low score routed to %v, want end", edge.To)
	}

	rec.SetVerdict(domain.Verdict{Kind: domain.VerdictPriority, Score: 50})
	edge, ok = g.Next(NodeScore, rec)
	if !ok || edge.To != NodeCreateTicket {
		t.Errorf("threshold score routed to %v, want create_ticket", edge.To)
	}

	// No verdict at all: do not escalate.
	bare := domain.NewRecord("wf", domain.FeedbackItem{})
	edge, ok = g.Next(NodeScore, bare)
	if !ok || edge.To != workflow.End {
		t.Errorf("absent score routed to %v, want end", edge.To)
	}
}

func TestBuildGraph_MonitorRouting(t *testing.T) {
	g := BuildGraph(testDeps(), 50)

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	rec.Ticket = &domain.TicketRef{ID: "1"}

	rec.Status = domain.StatusResolved
	edge, _ := g.Next(NodeMonitor, rec)
	if edge.To != NodeNotify {
		t.Errorf("resolved routed to %v, want notify", edge.To)
	}

	rec.Status = domain.StatusMonitoring
	edge, _ = g.Next(NodeMonitor, rec)
	if edge.To != NodeMonitor {
		t.Errorf("monitoring routed to %v, want monitor self-loop", edge.To)
	}

	rec.Status = domain.StatusMonitoringTimeout
	edge, _ = g.Next(NodeMonitor, rec)
	if edge.To != workflow.End {
		t.Errorf("timeout routed to %v, want end", edge.To)
	}
}

func TestBuildGraph_TicketRouting(t *testing.T) {
	g := BuildGraph(testDeps(), 50)

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	edge, _ := g.Next(NodeCreateTicket, rec)
	if edge.To != workflow.End {
		t.Errorf("no ticket routed to %v, want end", edge.To)
	}

	rec.Ticket = &domain.TicketRef{ID: "1"}
	edge, _ = g.Next(NodeCreateTicket, rec)
	if edge.To != NodeMonitor {
		t.Errorf("ticket routed to %v, want monitor", edge.To)
	}
}

func TestCollect_NormalizesItem(t *testing.T) {
	step := NewCollect(nil)

	rec := domain.NewRecord("wf", domain.FeedbackItem{Body: "hello"})
	out, err := step.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if out.Item.ID == "" {
		t.Error("expected a generated item id")
	}
	if out.Item.ReceivedAt.IsZero() {
		t.Error("expected received_at to be stamped")
	}
	if out.Item.Channel != domain.ChannelOther {
		t.Errorf("channel = %s, want other", out.Item.Channel)
	}
	if out.Status != domain.StatusCollected {
		t.Errorf("status = %s, want collected", out.Status)
	}
}

func TestCollect_PreservesProvidedFields(t *testing.T) {
	step := NewCollect(nil)

	rec := domain.NewRecord("wf", domain.FeedbackItem{ID: "given", Channel: domain.ChannelEmail})
	out, err := step.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if out.Item.ID != "given" || out.Item.Channel != domain.ChannelEmail {
		t.Errorf("provided fields were overwritten: %+v", out.Item)
	}
}

func TestAnalyze_SetsVerdicts(t *testing.T) {
	deps := testDeps()

	classify := NewAnalyzeClassification(deps.Analyzer, nil, fastRetry)
	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	out, err := classify.Execute(context.Background(), rec)
	if err != nil {
		t.Fatalf("classification failed: %v", err)
	}
	if v, ok := out.Verdict(domain.VerdictClassification); !ok || v.Label != "bug" {
		t.Errorf("classification verdict = %+v", v)
	}

	sentiment := NewAnalyzeSentiment(deps.Analyzer, nil, fastRetry)
	out, err = sentiment.Execute(context.Background(), out)
	if err != nil {
		t.Fatalf("sentiment failed: %v", err)
	}
	if v, ok := out.Verdict(domain.VerdictSentiment); !ok || v.Label != "negative" {
		t.Errorf("sentiment verdict = %+v", v)
	}
	// The earlier verdict is preserved.
	if _, ok := out.Verdict(domain.VerdictClassification); !ok {
		t.Error("classification verdict lost after sentiment step")
	}
}
