package steps

import (
	"context"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/call"
	"github.com/vietddude/triage/internal/workflow"
)

// AnalyzeClassification asks the model service for a category verdict.
// A failure here marks the record failed but does not halt the pipeline;
// downstream steps treat the missing verdict as a valid absent condition.
type AnalyzeClassification struct {
	base
	svc   Analyzer
	retry call.RetryConfig
}

// NewAnalyzeClassification creates the classification step.
func NewAnalyzeClassification(svc Analyzer, audit workflow.Auditor, retry call.RetryConfig) *AnalyzeClassification {
	return &AnalyzeClassification{
		base:  base{name: NodeClassify, audit: audit},
		svc:   svc,
		retry: retry,
	}
}

func (s *AnalyzeClassification) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	v, err := call.DoValue(ctx, "model", s.retry, func(ctx context.Context) (domain.Verdict, error) {
		return s.svc.Classify(ctx, rec.Item)
	})
	if err != nil {
		return rec, err
	}
	rec.SetVerdict(v)
	return rec, nil
}

// AnalyzeSentiment asks the model service for a sentiment verdict.
type AnalyzeSentiment struct {
	base
	svc   Analyzer
	retry call.RetryConfig
}

// NewAnalyzeSentiment creates the sentiment step.
func NewAnalyzeSentiment(svc Analyzer, audit workflow.Auditor, retry call.RetryConfig) *AnalyzeSentiment {
	return &AnalyzeSentiment{
		base:  base{name: NodeSentiment, audit: audit},
		svc:   svc,
		retry: retry,
	}
}

func (s *AnalyzeSentiment) Execute(ctx context.Context, rec domain.Record) (domain.Record, error) {
	v, err := call.DoValue(ctx, "model", s.retry, func(ctx context.Context) (domain.Verdict, error) {
		return s.svc.Sentiment(ctx, rec.Item)
	})
	if err != nil {
		return rec, err
	}
	rec.SetVerdict(v)
	return rec, nil
}
