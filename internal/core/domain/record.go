package domain

import (
	"time"
)

// Status is the workflow lifecycle tag. The set is closed; every step that
// completes either sets or preserves it.
type Status string

const (
	StatusCollected         Status = "collected"
	StatusAnalyzed          Status = "analyzed"
	StatusTicketCreated     Status = "ticket_created"
	StatusMonitoring        Status = "monitoring"
	StatusResolved          Status = "resolved"
	StatusNotified          Status = "notified"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusMonitoringTimeout Status = "monitoring_timeout"
)

// Terminal reports whether a workflow in this status has finished.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusMonitoringTimeout,
		StatusAnalyzed, StatusNotified:
		return true
	}
	return false
}

// Metadata keys owned by specific steps.
const (
	MetaPollAttempts   = "poll_attempts"
	MetaResumeNode     = "resume_node"
	MetaNextCheckAt    = "next_check_at"
	MetaMonitorSince   = "monitor_since"
	MetaDeliveredAt    = "delivered_at"
	MetaDeliveryKey    = "delivery_key"
	MetaDeliveryMsgID  = "delivery_message_id"
	MetaHeuristicFlags = "heuristic_flags"
)

// Record is the accumulating per-item state threaded through the workflow.
// Steps receive it by value and return a derived copy; a field set by an
// earlier step is preserved by every later step that does not own it, and
// Errors only ever grows.
type Record struct {
	WorkflowID string                  `json:"workflow_id"`
	Item       FeedbackItem            `json:"item"`
	Verdicts   map[VerdictKind]Verdict `json:"verdicts,omitempty"`
	Ticket     *TicketRef              `json:"ticket,omitempty"`
	Status     Status                  `json:"status"`
	Errors     []string                `json:"errors,omitempty"`
	Timestamps map[string]time.Time    `json:"timestamps,omitempty"`
	Metadata   map[string]string       `json:"metadata,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// NewRecord creates the Record for a freshly submitted item.
func NewRecord(workflowID string, item FeedbackItem) Record {
	now := time.Now().UTC()
	return Record{
		WorkflowID: workflowID,
		Item:       item,
		Verdicts:   make(map[VerdictKind]Verdict),
		Status:     StatusCollected,
		Timestamps: make(map[string]time.Time),
		Metadata:   make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy. Steps work on clones so a failing step can never
// corrupt the record its caller holds.
func (r Record) Clone() Record {
	out := r
	out.Verdicts = make(map[VerdictKind]Verdict, len(r.Verdicts))
	for k, v := range r.Verdicts {
		out.Verdicts[k] = v
	}
	out.Timestamps = make(map[string]time.Time, len(r.Timestamps))
	for k, v := range r.Timestamps {
		out.Timestamps[k] = v
	}
	out.Metadata = make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		out.Metadata[k] = v
	}
	out.Errors = append([]string(nil), r.Errors...)
	if r.Ticket != nil {
		t := *r.Ticket
		out.Ticket = &t
	}
	return out
}

// Verdict looks up one analysis result by kind.
func (r Record) Verdict(kind VerdictKind) (Verdict, bool) {
	v, ok := r.Verdicts[kind]
	return v, ok
}

// SetVerdict attaches an analysis result, replacing any prior one of the
// same kind.
func (r *Record) SetVerdict(v Verdict) {
	if r.Verdicts == nil {
		r.Verdicts = make(map[VerdictKind]Verdict)
	}
	r.Verdicts[v.Kind] = v
}

// PriorityScore returns the 1-100 priority score if the priority verdict is
// present. A missing score means "do not create a ticket".
func (r Record) PriorityScore() (int, bool) {
	v, ok := r.Verdicts[VerdictPriority]
	if !ok || v.Score <= 0 {
		return 0, false
	}
	return v.Score, true
}

// AppendError records a step failure. The list is append-only and is never
// cleared by later steps.
func (r *Record) AppendError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// StampStage records the completion instant of a stage.
func (r *Record) StampStage(stage string) {
	if r.Timestamps == nil {
		r.Timestamps = make(map[string]time.Time)
	}
	r.Timestamps[stage] = time.Now().UTC()
}

// Meta reads an auxiliary metadata value.
func (r Record) Meta(key string) (string, bool) {
	v, ok := r.Metadata[key]
	return v, ok
}

// SetMeta writes an auxiliary metadata value.
func (r *Record) SetMeta(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}

// MetaTime reads a metadata value stored as RFC3339Nano.
func (r Record) MetaTime(key string) (time.Time, bool) {
	v, ok := r.Metadata[key]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetMetaTime stores a timestamp metadata value as RFC3339Nano.
func (r *Record) SetMetaTime(key string, t time.Time) {
	r.SetMeta(key, t.UTC().Format(time.RFC3339Nano))
}

// NextCheckAt returns the scheduled time of the next monitoring poll.
func (r Record) NextCheckAt() (time.Time, bool) {
	return r.MetaTime(MetaNextCheckAt)
}
