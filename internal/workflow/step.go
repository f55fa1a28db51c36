// Package workflow implements the triage orchestration engine: the step
// contract, the directed graph of conditional edges, and the engine that
// drives records through it.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/metrics"
)

// Step is a named, failure-isolated unit of work. Execute derives a new
// Record from its input; it must never mutate shared state and reports
// failure through its error return only.
type Step interface {
	Name() string
	Execute(ctx context.Context, rec domain.Record) (domain.Record, error)
}

// Auditor receives action and decision entries. Implementations must never
// block or fail the workflow.
type Auditor interface {
	Action(workflowID, step, action, result string, dur time.Duration, err error)
	Decision(workflowID, step, label, reasoning string)
}

// NopAuditor discards all entries.
type NopAuditor struct{}

func (NopAuditor) Action(string, string, string, string, time.Duration, error) {}
func (NopAuditor) Decision(string, string, string, string)                     {}

// Runner wraps step execution with audit logging and failure capture. A step
// failure becomes Record state (errors + status=failed); it never crosses the
// step boundary as an error, so the engine cannot crash because of one step.
type Runner struct {
	audit Auditor
	log   *slog.Logger
}

// NewRunner creates a Runner. Nil arguments fall back to no-op audit and the
// default logger.
func NewRunner(audit Auditor, log *slog.Logger) *Runner {
	if audit == nil {
		audit = NopAuditor{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{audit: audit, log: log}
}

// Run executes one step against a clone of rec and returns the derived
// record. On failure the original record comes back with the failure appended
// to its error list and status set to failed.
func (r *Runner) Run(ctx context.Context, step Step, rec domain.Record) domain.Record {
	start := time.Now()
	out, err := step.Execute(ctx, rec.Clone())
	dur := time.Since(start)

	metrics.StepDuration.WithLabelValues(step.Name()).Observe(dur.Seconds())

	if err != nil {
		metrics.StepsTotal.WithLabelValues(step.Name(), "failure").Inc()
		r.audit.Action(rec.WorkflowID, step.Name(), "execute", "failure", dur, err)

		failed := rec.Clone()
		failed.AppendError(fmt.Sprintf("%s: %v", step.Name(), err))
		failed.Status = domain.StatusFailed
		failed.UpdatedAt = time.Now().UTC()
		return failed
	}

	metrics.StepsTotal.WithLabelValues(step.Name(), "success").Inc()
	r.audit.Action(rec.WorkflowID, step.Name(), "execute", "success", dur, nil)

	out.StampStage(step.Name())
	out.UpdatedAt = time.Now().UTC()
	return out
}
