// Package audit implements the append-only, fire-and-forget audit sink.
// Entries are queued on a bounded channel and written by a single drain
// goroutine; a full queue drops the entry rather than block a workflow.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/metrics"
)

type entryKind int

const (
	kindAction entryKind = iota
	kindDecision
)

type entry struct {
	kind       entryKind
	workflowID string
	step       string
	action     string
	result     string
	err        string
	label      string
	reasoning  string
	duration   time.Duration
	at         time.Time
}

// Sink buffers audit entries and writes them as structured log records.
type Sink struct {
	log *slog.Logger
	ch  chan entry

	startOnce sync.Once
	done      chan struct{}
}

// NewSink creates a sink with the given buffer size.
func NewSink(log *slog.Logger, buffer int) *Sink {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	return &Sink{
		log:  log.With("component", "audit"),
		ch:   make(chan entry, buffer),
		done: make(chan struct{}),
	}
}

// Start begins draining entries. Returns immediately; draining stops when
// ctx is cancelled.
func (s *Sink) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.done)
			for {
				select {
				case <-ctx.Done():
					// Drain whatever is already queued before exiting.
					for {
						select {
						case e := <-s.ch:
							s.write(e)
						default:
							return
						}
					}
				case e := <-s.ch:
					s.write(e)
				}
			}
		}()
	})
}

// Action records a step execution outcome.
func (s *Sink) Action(workflowID, step, action, result string, dur time.Duration, err error) {
	e := entry{
		kind:       kindAction,
		workflowID: workflowID,
		step:       step,
		action:     action,
		result:     result,
		duration:   dur,
		at:         time.Now().UTC(),
	}
	if err != nil {
		e.err = err.Error()
	}
	s.offer(e)
}

// Decision records why a routing choice was made. Metadata only; it has no
// effect on control flow.
func (s *Sink) Decision(workflowID, step, label, reasoning string) {
	s.offer(entry{
		kind:       kindDecision,
		workflowID: workflowID,
		step:       step,
		label:      label,
		reasoning:  reasoning,
		at:         time.Now().UTC(),
	})
}

func (s *Sink) offer(e entry) {
	select {
	case s.ch <- e:
	default:
		metrics.AuditDropped.Inc()
	}
}

func (s *Sink) write(e entry) {
	switch e.kind {
	case kindAction:
		if e.result == "failure" {
			s.log.Warn("action",
				"workflow", e.workflowID,
				"step", e.step,
				"action", e.action,
				"result", e.result,
				"error", e.err,
			)
			return
		}
		s.log.Info("action",
			"workflow", e.workflowID,
			"step", e.step,
			"action", e.action,
			"result", e.result,
			"duration", e.duration,
		)
	case kindDecision:
		s.log.Info("decision",
			"workflow", e.workflowID,
			"step", e.step,
			"label", e.label,
			"reasoning", e.reasoning,
		)
	}
}
