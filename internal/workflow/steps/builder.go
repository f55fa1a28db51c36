package steps

import (
	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/infra/notify"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/workflow"
)

// RetryPolicies carries the per-service retry configuration.
type RetryPolicies struct {
	Model  call.RetryConfig
	Ticket call.RetryConfig
	Notify call.RetryConfig
}

// Deps are the collaborators the pipeline steps need.
type Deps struct {
	Analyzer   Analyzer
	Tickets    TicketService
	Notifier   notify.Notifier
	Deliveries storage.DeliveryRepository
	Audit      workflow.Auditor
	Retry      RetryPolicies
	Monitor    MonitorConfig
	Project    string // ticket project key
}

// BuildGraph assembles the triage pipeline:
//
//	collect -> analyze_classification -> analyze_sentiment -> score
//	score --(score < threshold or absent)--> end
//	score --(score >= threshold)--> create_ticket
//	create_ticket --(no ticket id)--> end
//	create_ticket --(ticket id set)--> monitor
//	monitor --(resolved)--> notify --> end
//	monitor --(timeout)--> end
//	monitor --(otherwise)--> monitor, after the scheduled delay
//
// The monitor self-loop is the only cycle; the engine services it through
// the delay queue.
func BuildGraph(d Deps, scoreThreshold int) *workflow.Graph {
	score := NewScore(d.Analyzer, d.Audit, d.Retry.Model, scoreThreshold)

	g := workflow.NewGraph(NodeCollect)
	g.AddStep(NewCollect(d.Audit))
	g.AddStep(NewAnalyzeClassification(d.Analyzer, d.Audit, d.Retry.Model))
	g.AddStep(NewAnalyzeSentiment(d.Analyzer, d.Audit, d.Retry.Model))
	g.AddStep(score)
	g.AddStep(NewCreateTicket(d.Tickets, d.Audit, d.Retry.Ticket, d.Project))
	g.AddStep(NewMonitor(d.Tickets, d.Audit, d.Retry.Ticket, d.Monitor))
	g.AddStep(NewNotify(d.Notifier, d.Deliveries, d.Audit, d.Retry.Notify))

	g.AddEdge(NodeCollect, workflow.Edge{To: NodeClassify})
	g.AddEdge(NodeClassify, workflow.Edge{To: NodeSentiment})
	g.AddEdge(NodeSentiment, workflow.Edge{To: NodeScore})

	threshold := score.Threshold()
	g.AddEdge(NodeScore, workflow.Edge{
		To:     NodeCreateTicket,
		When:   scoreAtLeast(threshold),
		Reason: "priority score at or above escalation threshold",
	})
	g.AddEdge(NodeScore, workflow.Edge{
		To:     workflow.End,
		Reason: "priority score below threshold or absent",
	})

	g.AddEdge(NodeCreateTicket, workflow.Edge{
		To:     NodeMonitor,
		When:   hasTicket,
		Reason: "ticket opened, monitoring for resolution",
	})
	g.AddEdge(NodeCreateTicket, workflow.Edge{
		To:     workflow.End,
		Reason: "no ticket id produced",
	})

	g.AddEdge(NodeMonitor, workflow.Edge{
		To:     NodeNotify,
		When:   statusIs(domain.StatusResolved),
		Reason: "ticket resolved",
	})
	g.AddEdge(NodeMonitor, workflow.Edge{
		To:     workflow.End,
		When:   statusIs(domain.StatusMonitoringTimeout),
		Reason: "monitoring bound reached",
	})
	g.AddEdge(NodeMonitor, workflow.Edge{
		To:     NodeMonitor,
		When:   statusIs(domain.StatusMonitoring),
		Reason: "awaiting resolution",
	})
	g.AddEdge(NodeMonitor, workflow.Edge{
		To:     workflow.End,
		Reason: "monitoring aborted",
	})

	g.AddEdge(NodeNotify, workflow.Edge{To: workflow.End})

	return g
}

func scoreAtLeast(threshold int) workflow.Predicate {
	return func(rec domain.Record) bool {
		score, ok := rec.PriorityScore()
		return ok && score >= threshold
	}
}

func hasTicket(rec domain.Record) bool {
	return rec.Ticket != nil && rec.Ticket.ID != ""
}

func statusIs(status domain.Status) workflow.Predicate {
	return func(rec domain.Record) bool { return rec.Status == status }
}
