package steps

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/metrics"
	"github.com/vietddude/triage/internal/workflow"
)

// MonitorConfig bounds the monitoring loop.
type MonitorConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`  // delay before the next status check
	BackoffFactor float64       `yaml:"backoff_factor"` // >1 grows the delay per poll, <=1 keeps it fixed
	MaxDelay      time.Duration `yaml:"max_delay"`      // cap when backing off
	MaxPolls      int           `yaml:"max_polls"`      // attempt bound, guarantees termination
	MaxElapsed    time.Duration `yaml:"max_elapsed"`    // wall-clock bound, whichever hits first
	Resolutions   []string      `yaml:"resolutions"`    // ticket statuses considered resolved
}

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Minute
	}
	if c.MaxPolls <= 0 {
		c.MaxPolls = 20
	}
	if c.MaxElapsed <= 0 {
		c.MaxElapsed = 24 * time.Hour
	}
	if len(c.Resolutions) == 0 {
		c.Resolutions = []string{"done", "resolved", "closed"}
	}
	return c
}

// Monitor performs one ticket status check per invocation. It never sleeps:
// when the ticket is not yet resolved it stores the next poll time in the
// record's metadata and returns, leaving the wait to the engine's loop edge.
type Monitor struct {
	base
	svc         TicketService
	retry       call.RetryConfig
	cfg         MonitorConfig
	resolutions map[string]struct{}
	now         func() time.Time
}

// NewMonitor creates the monitoring step.
func NewMonitor(svc TicketService, audit workflow.Auditor, retry call.RetryConfig, cfg MonitorConfig) *Monitor {
	cfg = cfg.withDefaults()
	resolutions := make(map[string]struct{}, len(cfg.Resolutions))
	for _, s := range cfg.Resolutions {
		resolutions[normalizeStatus(s)] = struct{}{}
	}
	return &Monitor{
		base:        base{name: NodeMonitor, audit: audit},
		svc:         svc,
		retry:       retry,
		cfg:         cfg,
		resolutions: resolutions,
		now:         time.Now,
	}
}

func (s *Monitor) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	if rec.Ticket == nil || rec.Ticket.ID == "" {
		return rec, fmt.Errorf("no ticket to monitor")
	}

	now := s.now()
	if _, ok := rec.MetaTime(domain.MetaMonitorSince); !ok {
		rec.SetMetaTime(domain.MetaMonitorSince, now)
	}
	attempts := metaInt(rec, domain.MetaPollAttempts)

	status, err := call.DoValue(ctx, "ticket", s.retry, func(ctx context.Context) (string, error) {
		return s.svc.GetTicketStatus(ctx, rec.Ticket.ID)
	})
	if err != nil {
		ce := call.Classify(err)
		if !ce.Retryable() {
			// Credentials or a vanished ticket: polling again cannot help.
			return rec, err
		}
		// Transient outage of the ticket system. Stay in monitoring and let
		// the next scheduled poll retry; this must not abort the loop.
		metrics.MonitorPolls.WithLabelValues("error").Inc()
		s.decision(rec, "poll_failed", fmt.Sprintf(
			"status check failed (%s); staying in monitoring", ce.Category))
		return s.scheduleNext(rec, attempts+1, now), nil
	}

	attempts++
	rec.SetMeta(domain.MetaPollAttempts, strconv.Itoa(attempts))
	rec.Ticket.Status = status

	if _, resolved := s.resolutions[normalizeStatus(status)]; resolved {
		metrics.MonitorPolls.WithLabelValues("resolved").Inc()
		rec.Status = domain.StatusResolved
		rec.StampStage("resolved")
		s.decision(rec, "resolved", fmt.Sprintf("ticket %s reached status %q after %d polls",
			rec.Ticket.ID, status, attempts))
		return rec, nil
	}

	metrics.MonitorPolls.WithLabelValues("pending").Inc()
	return s.scheduleNext(rec, attempts, now), nil
}

// scheduleNext either parks the record for another poll or times the loop out.
func (s *Monitor) scheduleNext(rec domain.Record, attempts int, now time.Time) domain.Record {
	rec.SetMeta(domain.MetaPollAttempts, strconv.Itoa(attempts))

	since, _ := rec.MetaTime(domain.MetaMonitorSince)
	if attempts >= s.cfg.MaxPolls || now.Sub(since) >= s.cfg.MaxElapsed {
		metrics.MonitorPolls.WithLabelValues("timeout").Inc()
		rec.Status = domain.StatusMonitoringTimeout
		s.decision(rec, "timeout", fmt.Sprintf(
			"giving up after %d polls over %s", attempts, now.Sub(since).Round(time.Second)))
		return rec
	}

	rec.SetMetaTime(domain.MetaNextCheckAt, now.Add(s.nextDelay(attempts)))
	rec.Status = domain.StatusMonitoring
	return rec
}

// nextDelay computes the inter-poll delay: fixed, or growing when a backoff
// factor is configured.
func (s *Monitor) nextDelay(attempts int) time.Duration {
	if s.cfg.BackoffFactor <= 1 || attempts <= 1 {
		return s.cfg.PollInterval
	}
	d := float64(s.cfg.PollInterval) * math.Pow(s.cfg.BackoffFactor, float64(attempts-1))
	if d > float64(s.cfg.MaxDelay) {
		d = float64(s.cfg.MaxDelay)
	}
	return time.Duration(d)
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func metaInt(rec domain.Record, key string) int {
	v, ok := rec.Meta(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
