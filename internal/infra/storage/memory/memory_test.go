package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

func TestRecordRepo_SaveGetIsolation(t *testing.T) {
	repo := NewRecordRepo(NewStore())
	ctx := context.Background()

	rec := domain.NewRecord("wf-1", domain.FeedbackItem{ID: "item-1"})
	if err := repo.Save(ctx, &rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the saved-from record must not affect the stored copy.
	rec.SetMeta("k", "v")

	got, err := repo.Get(ctx, "wf-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := got.Meta("k"); ok {
		t.Error("store shares memory with the caller's record")
	}

	// And mutating the returned record must not affect the store.
	got.SetMeta("k2", "v2")
	again, _ := repo.Get(ctx, "wf-1")
	if _, ok := again.Meta("k2"); ok {
		t.Error("returned record shares memory with the store")
	}
}

func TestRecordRepo_GetMissing(t *testing.T) {
	repo := NewRecordRepo(NewStore())
	if _, err := repo.Get(context.Background(), "nope"); err != storage.ErrRecordNotFound {
		t.Errorf("Get(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestRecordRepo_ListByStatus(t *testing.T) {
	repo := NewRecordRepo(NewStore())
	ctx := context.Background()

	for i, status := range []domain.Status{domain.StatusMonitoring, domain.StatusCompleted, domain.StatusMonitoring} {
		rec := domain.NewRecord(string(rune('a'+i)), domain.FeedbackItem{})
		rec.Status = status
		if err := repo.Save(ctx, &rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	recs, err := repo.ListByStatus(ctx, domain.StatusMonitoring)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d records, want 2", len(recs))
	}
}

func TestRecordRepo_DeleteTerminalBefore(t *testing.T) {
	repo := NewRecordRepo(NewStore())
	ctx := context.Background()
	cutoff := time.Now()

	old := domain.NewRecord("old-done", domain.FeedbackItem{})
	old.Status = domain.StatusCompleted
	old.UpdatedAt = cutoff.Add(-time.Hour)
	activeOld := domain.NewRecord("old-active", domain.FeedbackItem{})
	activeOld.Status = domain.StatusMonitoring
	activeOld.UpdatedAt = cutoff.Add(-time.Hour)
	fresh := domain.NewRecord("fresh-done", domain.FeedbackItem{})
	fresh.Status = domain.StatusCompleted
	fresh.UpdatedAt = cutoff.Add(time.Hour)

	for _, r := range []*domain.Record{&old, &activeOld, &fresh} {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteTerminalBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := repo.Get(ctx, "old-active"); err != nil {
		t.Error("active record was pruned")
	}
	if _, err := repo.Get(ctx, "fresh-done"); err != nil {
		t.Error("fresh terminal record was pruned")
	}
}

func TestDeliveryRepo_CommitOnce(t *testing.T) {
	repo := NewDeliveryRepo(NewStore())
	ctx := context.Background()

	exists, err := repo.Check(ctx, "t:i")
	if err != nil || exists {
		t.Fatalf("Check on empty store = %v, %v", exists, err)
	}

	fresh, err := repo.Commit(ctx, "t:i")
	if err != nil || !fresh {
		t.Fatalf("first Commit = %v, %v; want fresh", fresh, err)
	}

	fresh, err = repo.Commit(ctx, "t:i")
	if err != nil || fresh {
		t.Fatalf("second Commit = %v, %v; want not fresh", fresh, err)
	}

	exists, _ = repo.Check(ctx, "t:i")
	if !exists {
		t.Error("Check after Commit = false")
	}
}

func TestDelayQueue_PopDueOrderAndLimit(t *testing.T) {
	q := NewDelayQueue(NewStore())
	ctx := context.Background()
	now := time.Now()

	_ = q.Schedule(ctx, "late", now.Add(-time.Second))
	_ = q.Schedule(ctx, "early", now.Add(-time.Minute))
	_ = q.Schedule(ctx, "future", now.Add(time.Hour))

	ids, err := q.PopDue(ctx, now, 1)
	if err != nil {
		t.Fatalf("PopDue failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "early" {
		t.Errorf("PopDue = %v, want [early]", ids)
	}

	ids, _ = q.PopDue(ctx, now, 10)
	if len(ids) != 1 || ids[0] != "late" {
		t.Errorf("second PopDue = %v, want [late]", ids)
	}

	ids, _ = q.PopDue(ctx, now, 10)
	if len(ids) != 0 {
		t.Errorf("future entry popped early: %v", ids)
	}
}

func TestDelayQueue_RescheduleMovesEntry(t *testing.T) {
	q := NewDelayQueue(NewStore())
	ctx := context.Background()
	now := time.Now()

	_ = q.Schedule(ctx, "wf", now.Add(-time.Minute))
	_ = q.Schedule(ctx, "wf", now.Add(time.Hour))

	ids, _ := q.PopDue(ctx, now, 10)
	if len(ids) != 0 {
		t.Errorf("rescheduled entry still due: %v", ids)
	}
}
