package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediashrink/internal/domain"
)

func TestMemoryJobsFinishFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	jobs := NewMemoryStore().Jobs()
	if err := jobs.Create(ctx, &domain.Job{ID: "job-1", State: domain.JobStateRunning, SourceRef: "src"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := jobs.Finish(ctx, "job-1", domain.JobStateCompleted, "outputs/job-1.mp4", "", 42)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if first.State != domain.JobStateCompleted || first.ProgressPercent != 100 {
		t.Fatalf("first finish = %+v", first)
	}

	second, err := jobs.Finish(ctx, "job-1", domain.JobStateCancelled, "", "", 0)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	if second.State != domain.JobStateCompleted {
		t.Fatalf("second finish state = %s, want completed", second.State)
	}
	if second.ResultRef != "outputs/job-1.mp4" {
		t.Fatalf("result ref = %q", second.ResultRef)
	}
}

func TestMemoryJobsProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	jobs := NewMemoryStore().Jobs()
	_ = jobs.Create(ctx, &domain.Job{ID: "job-1", State: domain.JobStateQueued})

	_ = jobs.UpdateProgress(ctx, "job-1", domain.JobStateRunning, 40, domain.PhaseEncoding)
	_ = jobs.UpdateProgress(ctx, "job-1", domain.JobStateRunning, 20, domain.PhaseEncoding)

	job, err := jobs.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.ProgressPercent != 40 {
		t.Fatalf("progress = %d, want 40", job.ProgressPercent)
	}
}

func TestMemoryJobsListFinishedBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	jobs := store.Jobs()

	_ = jobs.Create(ctx, &domain.Job{ID: "old", State: domain.JobStateRunning})
	_ = jobs.Create(ctx, &domain.Job{ID: "active", State: domain.JobStateRunning})
	if _, err := jobs.Finish(ctx, "old", domain.JobStateFailed, "", "boom", 0); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := jobs.ListFinishedBefore(ctx, clock.Add(time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("finished = %+v", got)
	}
}

func TestMemoryMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Jobs().GetByID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID err = %v", err)
	}
	if _, err := store.Jobs().Finish(ctx, "nope", domain.JobStateCancelled, "", "", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Finish err = %v", err)
	}
	if _, err := store.Uploads().GetByRef(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByRef err = %v", err)
	}
}
