package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/metrics"
)

// Config holds engine tuning parameters.
type Config struct {
	Workers       int
	QueueSize     int
	SweepInterval time.Duration // how often the dispatcher checks for due re-entries
	SweepBatch    int
	Resume        bool // re-schedule records left in monitoring on startup
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 500 * time.Millisecond
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 64
	}
	return c
}

type task struct {
	workflowID string
	node       string // empty = resume from the record's stored resume node
}

// Engine drives records through the graph. One workflow instance executes
// strictly sequentially; many instances run concurrently across the worker
// pool, coordinated only through the durable record store and delay queue.
type Engine struct {
	graph   *Graph
	runner  *Runner
	records storage.RecordRepository
	queue   storage.DelayQueue
	audit   Auditor
	log     *slog.Logger
	cfg     Config

	tasks   chan task
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewEngine creates an engine. All collaborators are injected; the engine
// holds no global state.
func NewEngine(
	graph *Graph,
	runner *Runner,
	records storage.RecordRepository,
	queue storage.DelayQueue,
	auditor Auditor,
	log *slog.Logger,
	cfg Config,
) *Engine {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		graph:   graph,
		runner:  runner,
		records: records,
		queue:   queue,
		audit:   auditor,
		log:     log.With("component", "engine"),
		cfg:     cfg,
		tasks:   make(chan task, cfg.QueueSize),
	}
}

// Start launches the worker pool and the delay-queue dispatcher. Workers stop
// when ctx is cancelled; call Wait to block until they have drained.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine already running")
	}
	if err := e.graph.Validate(); err != nil {
		e.running.Store(false)
		return fmt.Errorf("invalid graph: %w", err)
	}

	for i := 0; i < e.cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}

	e.wg.Add(1)
	go e.dispatch(ctx)

	if e.cfg.Resume {
		if err := e.resume(ctx); err != nil {
			e.log.Warn("resume scan failed", "error", err)
		}
	}

	e.log.Info("engine started", "workers", e.cfg.Workers, "sweep_interval", e.cfg.SweepInterval)
	return nil
}

// Wait blocks until all workers have exited after context cancellation.
func (e *Engine) Wait() {
	e.wg.Wait()
	e.running.Store(false)
}

// Submit creates a record for the item and enqueues its workflow from the
// start node. Returns the workflow id.
func (e *Engine) Submit(ctx context.Context, item domain.FeedbackItem) (string, error) {
	if !e.running.Load() {
		return "", fmt.Errorf("engine not running")
	}

	workflowID := uuid.NewString()
	rec := domain.NewRecord(workflowID, item)
	if err := e.records.Save(ctx, &rec); err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}

	select {
	case e.tasks <- task{workflowID: workflowID, node: e.graph.Start()}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return workflowID, nil
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-e.tasks:
			e.process(ctx, t)
		}
	}
}

// dispatch sweeps the delay queue and re-enqueues due workflows. This is the
// loop edge's waiting mechanism: no workflow ever sleeps inside a worker.
func (e *Engine) dispatch(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := e.queue.PopDue(ctx, time.Now(), e.cfg.SweepBatch)
			if err != nil {
				e.log.Warn("delay queue sweep failed", "error", err)
				continue
			}
			for _, id := range ids {
				select {
				case e.tasks <- task{workflowID: id}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// resume re-schedules records left in monitoring by a previous process.
func (e *Engine) resume(ctx context.Context) error {
	recs, err := e.records.ListByStatus(ctx, domain.StatusMonitoring)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		due, ok := rec.NextCheckAt()
		if !ok || due.Before(time.Now()) {
			due = time.Now()
		}
		if err := e.queue.Schedule(ctx, rec.WorkflowID, due); err != nil {
			e.log.Warn("failed to re-schedule workflow", "workflow", rec.WorkflowID, "error", err)
			continue
		}
		e.log.Info("resumed monitoring workflow", "workflow", rec.WorkflowID, "due", due)
	}
	return nil
}

// process advances one workflow until it ends or suspends on a loop edge.
func (e *Engine) process(ctx context.Context, t task) {
	rec, err := e.records.Get(ctx, t.workflowID)
	if err != nil {
		e.log.Error("failed to load record", "workflow", t.workflowID, "error", err)
		return
	}

	node := t.node
	if node == "" {
		node, _ = rec.Meta(domain.MetaResumeNode)
		if node == "" {
			// Stale queue entry for a workflow that already finished.
			return
		}
	}

	for {
		step, ok := e.graph.Step(node)
		if !ok {
			e.log.Error("unknown graph node", "workflow", rec.WorkflowID, "node", node)
			return
		}

		out := e.runner.Run(ctx, step, *rec)
		rec = &out
		if err := e.records.Save(ctx, rec); err != nil {
			e.log.Error("failed to persist record", "workflow", rec.WorkflowID, "error", err)
			return
		}

		if rec.Status == domain.StatusFailed {
			e.finalize(ctx, rec)
			return
		}

		edge, ok := e.graph.Next(node, out)
		if !ok {
			e.finalize(ctx, rec)
			return
		}
		if edge.Reason != "" {
			e.audit.Decision(rec.WorkflowID, node, "route", edge.Reason)
		}

		switch {
		case edge.To == End:
			e.finalize(ctx, rec)
			return
		case edge.To == node:
			e.suspend(ctx, rec, node)
			return
		default:
			node = edge.To
		}
	}
}

// suspend parks a workflow on its loop edge until the scheduled re-entry.
func (e *Engine) suspend(ctx context.Context, rec *domain.Record, node string) {
	due, ok := rec.NextCheckAt()
	if !ok {
		due = time.Now().Add(e.cfg.SweepInterval)
	}
	rec.SetMeta(domain.MetaResumeNode, node)
	if err := e.records.Save(ctx, rec); err != nil {
		e.log.Error("failed to persist suspension", "workflow", rec.WorkflowID, "error", err)
		return
	}
	if err := e.queue.Schedule(ctx, rec.WorkflowID, due); err != nil {
		e.log.Error("failed to schedule re-entry", "workflow", rec.WorkflowID, "error", err)
	}
}

// finalize closes out a workflow that reached a terminal edge.
func (e *Engine) finalize(ctx context.Context, rec *domain.Record) {
	if rec.Status == domain.StatusNotified {
		rec.Status = domain.StatusCompleted
		rec.StampStage("completed")
	}
	rec.UpdatedAt = time.Now().UTC()
	if err := e.records.Save(ctx, rec); err != nil {
		e.log.Error("failed to persist terminal record", "workflow", rec.WorkflowID, "error", err)
	}

	metrics.WorkflowsTotal.WithLabelValues(string(rec.Status)).Inc()
	e.audit.Action(rec.WorkflowID, "workflow", "finish", string(rec.Status), 0, nil)
	e.log.Info("workflow finished", "workflow", rec.WorkflowID, "status", rec.Status)
}
