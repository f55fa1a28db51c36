// Package worker holds background maintenance workers.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vietddude/triage/internal/infra/storage"
	"github.com/vietddude/triage/internal/metrics"
)

// Pruner deletes terminal records past the retention period on a cron
// schedule.
type Pruner struct {
	records   storage.RecordRepository
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker. A retention of zero disables it.
func NewPruner(records storage.RecordRepository, retention time.Duration, schedule string) *Pruner {
	return &Pruner{
		records:   records,
		retention: retention,
		schedule:  schedule,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start schedules the prune job. Returns immediately.
func (p *Pruner) Start(ctx context.Context) error {
	if p.retention <= 0 {
		return nil // Retention disabled
	}

	p.cron = cron.New()
	_, err := p.cron.AddFunc(p.schedule, func() { p.prune(ctx) })
	if err != nil {
		return err
	}
	p.cron.Start()
	p.log.Info("pruner started", "schedule", p.schedule, "retention", p.retention)
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
}

func (p *Pruner) prune(ctx context.Context) {
	cutoff := time.Now().Add(-p.retention)
	n, err := p.records.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		p.log.Error("failed to prune records", "error", err)
		return
	}
	if n > 0 {
		metrics.RecordsPruned.Add(float64(n))
		p.log.Info("pruned terminal records", "count", n, "cutoff", cutoff)
	}
}
