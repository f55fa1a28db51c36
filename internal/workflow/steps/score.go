package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/workflow"
)

// DefaultScoreThreshold is the escalation cut-off on the 1-100 priority scale.
const DefaultScoreThreshold = 50

// burningPhrases are the local heuristic for issues that should score high
// regardless of what the model says.
var burningPhrases = []string{
	"outage",
	"down for",
	"data loss",
	"lost data",
	"security",
	"breach",
	"cannot log in",
	"can't log in",
	"crash",
	"charged twice",
	"urgent",
}

// Score asks the model service for a 1-100 priority score and cross-checks it
// against the burning-issue heuristic. Disagreement is logged as a decision
// entry only; the model's verdict is never overridden.
type Score struct {
	base
	svc       Analyzer
	retry     call.RetryConfig
	threshold int
}

// NewScore creates the scoring step.
func NewScore(svc Analyzer, audit workflow.Auditor, retry call.RetryConfig, threshold int) *Score {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	return &Score{
		base:      base{name: NodeScore, audit: audit},
		svc:       svc,
		retry:     retry,
		threshold: threshold,
	}
}

// Threshold returns the escalation cut-off.
func (s *Score) Threshold() int { return s.threshold }

func (s *Score) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	v, err := call.DoValue(ctx, "model", s.retry, func(ctx context.Context) (domain.Verdict, error) {
		return s.svc.Score(ctx, rec.Item)
	})
	if err != nil {
		return rec, err
	}
	if v.Score < 1 || v.Score > 100 {
		return rec, fmt.Errorf("model returned priority score %d outside 1-100", v.Score)
	}
	rec.SetVerdict(v)

	if phrase, burning := s.burningIssue(rec.Item); burning {
		rec.SetMeta(domain.MetaHeuristicFlags, "burning_issue")
		if v.Score < s.threshold {
			s.decision(rec, "heuristic_disagreement", fmt.Sprintf(
				"item matches burning phrase %q but model scored %d (threshold %d); keeping model verdict",
				phrase, v.Score, s.threshold))
		}
	}

	if v.Score >= s.threshold {
		s.decision(rec, "escalate", fmt.Sprintf("score %d >= threshold %d", v.Score, s.threshold))
	} else {
		s.decision(rec, "no_escalation", fmt.Sprintf("score %d < threshold %d", v.Score, s.threshold))
	}

	rec.Status = domain.StatusAnalyzed
	return rec, nil
}

func (s *Score) burningIssue(item domain.FeedbackItem) (string, bool) {
	text := strings.ToLower(item.Subject + " " + item.Body)
	for _, p := range burningPhrases {
		if strings.Contains(text, p) {
			return p, true
		}
	}
	return "", false
}
