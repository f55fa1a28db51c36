package domain

import "time"

// VerdictKind names an analysis result slot on a Record.
type VerdictKind string

const (
	VerdictClassification VerdictKind = "classification"
	VerdictSentiment      VerdictKind = "sentiment"
	VerdictPriority       VerdictKind = "priority"
)

// Verdict is one structured analysis result produced by the model service.
// A kind that was never produced is simply absent from Record.Verdicts;
// absence is a valid, non-fatal condition for downstream steps.
type Verdict struct {
	Kind      VerdictKind `json:"kind"`
	Label     string      `json:"label,omitempty"`
	Score     int         `json:"score,omitempty"` // 1-100, priority verdicts only
	Rationale string      `json:"rationale,omitempty"`
	Model     string      `json:"model,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
