package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/triage/internal/core/domain"
)

func TestRunner_SuccessStampsStage(t *testing.T) {
	runner := NewRunner(nil, nil)
	step := &fakeStep{name: "collect", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.Status = domain.StatusCollected
		return rec, nil
	}}

	rec := domain.NewRecord("wf", domain.FeedbackItem{ID: "item"})
	out := runner.Run(context.Background(), step, rec)

	if out.Status != domain.StatusCollected {
		t.Errorf("status = %s, want collected", out.Status)
	}
	if _, ok := out.Timestamps["collect"]; !ok {
		t.Error("expected stage timestamp for collect")
	}
	if len(out.Errors) != 0 {
		t.Errorf("unexpected errors: %v", out.Errors)
	}
}

func TestRunner_FailureCapturedAsState(t *testing.T) {
	runner := NewRunner(nil, nil)
	boom := errors.New("model unavailable")
	step := &fakeStep{name: "analyze", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		// Mutations made before the failure must not survive.
		rec.SetMeta("partial", "yes")
		return rec, boom
	}}

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	out := runner.Run(context.Background(), step, rec)

	if out.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", out.Status)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("errors = %v, want one entry", out.Errors)
	}
	if out.Errors[0] != "analyze: model unavailable" {
		t.Errorf("error entry = %q", out.Errors[0])
	}
	if _, ok := out.Meta("partial"); ok {
		t.Error("partial mutation from failing step leaked into result")
	}
}

func TestRunner_FailurePreservesPriorErrors(t *testing.T) {
	runner := NewRunner(nil, nil)
	step := &fakeStep{name: "notify", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		return rec, errors.New("delivery failed")
	}}

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	rec.AppendError("earlier: transient glitch")
	out := runner.Run(context.Background(), step, rec)

	if len(out.Errors) != 2 {
		t.Fatalf("errors = %v, want earlier entry preserved", out.Errors)
	}
	if out.Errors[0] != "earlier: transient glitch" {
		t.Errorf("prior error was rewritten: %q", out.Errors[0])
	}
}

func TestRunner_InputRecordUntouched(t *testing.T) {
	runner := NewRunner(nil, nil)
	step := &fakeStep{name: "mutate", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.SetMeta("k", "v")
		return rec, nil
	}}

	rec := domain.NewRecord("wf", domain.FeedbackItem{})
	runner.Run(context.Background(), step, rec)

	if _, ok := rec.Meta("k"); ok {
		t.Error("step mutated the caller's record")
	}
}
