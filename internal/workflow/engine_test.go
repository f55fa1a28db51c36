package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage/memory"
)

func testEngineConfig() Config {
	return Config{
		Workers:       2,
		QueueSize:     16,
		SweepInterval: 5 * time.Millisecond,
		SweepBatch:    16,
	}
}

// waitForStatus polls the store until the workflow reaches one of the wanted
// statuses or the deadline passes.
func waitForStatus(t *testing.T, store *memory.RecordRepo, id string, want ...domain.Status) domain.Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := store.Get(context.Background(), id)
		if err == nil {
			for _, s := range want {
				if rec.Status == s {
					return *rec
				}
			}
		}
		time.Sleep(2 * time.Millisecond)
	}
	rec, _ := store.Get(context.Background(), id)
	t.Fatalf("workflow %s never reached %v, last state: %+v", id, want, rec)
	return domain.Record{}
}

func TestEngine_LinearRunToCompletion(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewRecordRepo(store)
	queue := memory.NewDelayQueue(store)

	g := NewGraph("a")
	g.AddStep(&fakeStep{name: "a", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.SetMeta("a", "done")
		return rec, nil
	}})
	g.AddStep(&fakeStep{name: "b", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.Status = domain.StatusNotified
		return rec, nil
	}})
	g.AddEdge("a", Edge{To: "b"})
	g.AddEdge("b", Edge{To: End})

	engine := NewEngine(g, NewRunner(nil, nil), records, queue, nil, nil, testEngineConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	id, err := engine.Submit(ctx, domain.FeedbackItem{ID: "item-1"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := waitForStatus(t, records, id, domain.StatusCompleted)
	if v, _ := rec.Meta("a"); v != "done" {
		t.Error("first step's mutation lost")
	}
	if _, ok := rec.Timestamps["a"]; !ok {
		t.Error("missing stage timestamp for a")
	}
	if _, ok := rec.Timestamps["completed"]; !ok {
		t.Error("missing completion timestamp")
	}

	cancel()
	engine.Wait()
}

func TestEngine_StepFailureEndsWorkflow(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewRecordRepo(store)
	queue := memory.NewDelayQueue(store)

	executed := make(chan string, 8)
	g := NewGraph("a")
	g.AddStep(&fakeStep{name: "a", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		executed <- "a"
		return rec, errors.New("boom")
	}})
	g.AddStep(&fakeStep{name: "b", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		executed <- "b"
		return rec, nil
	}})
	g.AddEdge("a", Edge{To: "b"})
	g.AddEdge("b", Edge{To: End})

	engine := NewEngine(g, NewRunner(nil, nil), records, queue, nil, nil, testEngineConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	id, err := engine.Submit(ctx, domain.FeedbackItem{ID: "item-1"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := waitForStatus(t, records, id, domain.StatusFailed)
	if len(rec.Errors) != 1 || rec.Errors[0] != "a: boom" {
		t.Errorf("errors = %v, want [a: boom]", rec.Errors)
	}

	cancel()
	engine.Wait()

	close(executed)
	for name := range executed {
		if name == "b" {
			t.Error("step after the failure was executed")
		}
	}
}

func TestEngine_LoopEdgeGoesThroughDelayQueue(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewRecordRepo(store)
	queue := memory.NewDelayQueue(store)

	// The looping step polls three times before declaring resolution,
	// scheduling each re-entry a few milliseconds out.
	g := NewGraph("m")
	g.AddStep(&fakeStep{name: "m", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		n := 0
		if v, ok := rec.Meta("polls"); ok {
			n, _ = strconv.Atoi(v)
		}
		n++
		rec.SetMeta("polls", strconv.Itoa(n))
		if n >= 3 {
			rec.Status = domain.StatusResolved
			return rec, nil
		}
		rec.Status = domain.StatusMonitoring
		rec.SetMetaTime(domain.MetaNextCheckAt, time.Now().Add(5*time.Millisecond))
		return rec, nil
	}})
	g.AddStep(&fakeStep{name: "done", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.Status = domain.StatusNotified
		return rec, nil
	}})
	g.AddEdge("m", Edge{To: "done", When: func(r domain.Record) bool { return r.Status == domain.StatusResolved }})
	g.AddEdge("m", Edge{To: "m", When: func(r domain.Record) bool { return r.Status == domain.StatusMonitoring }})
	g.AddEdge("m", Edge{To: End})
	g.AddEdge("done", Edge{To: End})

	engine := NewEngine(g, NewRunner(nil, nil), records, queue, nil, nil, testEngineConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	id, err := engine.Submit(ctx, domain.FeedbackItem{ID: "item-1"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	rec := waitForStatus(t, records, id, domain.StatusCompleted)
	if v, _ := rec.Meta("polls"); v != "3" {
		t.Errorf("polls = %s, want 3", v)
	}

	cancel()
	engine.Wait()
}

func TestEngine_ResumeReschedulesMonitoring(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewRecordRepo(store)
	queue := memory.NewDelayQueue(store)

	// A record left behind in monitoring by a previous process.
	rec := domain.NewRecord("wf-resume", domain.FeedbackItem{ID: "item-1"})
	rec.Status = domain.StatusMonitoring
	rec.SetMeta(domain.MetaResumeNode, "m")
	rec.SetMetaTime(domain.MetaNextCheckAt, time.Now().Add(-time.Minute))
	if err := records.Save(context.Background(), &rec); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	g := NewGraph("m")
	g.AddStep(&fakeStep{name: "m", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.Status = domain.StatusResolved
		return rec, nil
	}})
	g.AddEdge("m", Edge{To: End})

	cfg := testEngineConfig()
	cfg.Resume = true
	engine := NewEngine(g, NewRunner(nil, nil), records, queue, nil, nil, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitForStatus(t, records, "wf-resume", domain.StatusResolved)

	cancel()
	engine.Wait()
}

func TestEngine_SubmitWhenStopped(t *testing.T) {
	store := memory.NewStore()
	g := NewGraph("a")
	g.AddStep(&fakeStep{name: "a"})
	g.AddEdge("a", Edge{To: End})

	engine := NewEngine(g, NewRunner(nil, nil), memory.NewRecordRepo(store), memory.NewDelayQueue(store), nil, nil, testEngineConfig())
	if _, err := engine.Submit(context.Background(), domain.FeedbackItem{}); err == nil {
		t.Error("expected Submit to fail before Start")
	}
}

func TestEngine_StartRejectsInvalidGraph(t *testing.T) {
	store := memory.NewStore()
	g := NewGraph("missing")

	engine := NewEngine(g, NewRunner(nil, nil), memory.NewRecordRepo(store), memory.NewDelayQueue(store), nil, nil, testEngineConfig())
	if err := engine.Start(context.Background()); err == nil {
		t.Error("expected Start to reject a graph without its start node")
	}
}

func TestEngine_ConcurrentWorkflows(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewRecordRepo(store)
	queue := memory.NewDelayQueue(store)

	g := NewGraph("a")
	g.AddStep(&fakeStep{name: "a", fn: func(ctx context.Context, rec domain.Record) (domain.Record, error) {
		rec.Status = domain.StatusNotified
		return rec, nil
	}})
	g.AddEdge("a", Edge{To: End})

	engine := NewEngine(g, NewRunner(nil, nil), records, queue, nil, nil, testEngineConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ids := make([]string, 10)
	for i := range ids {
		id, err := engine.Submit(ctx, domain.FeedbackItem{ID: fmt.Sprintf("item-%d", i)})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		ids[i] = id
	}
	for _, id := range ids {
		waitForStatus(t, records, id, domain.StatusCompleted)
	}

	cancel()
	engine.Wait()
}
