package memjob

import (
	"context"
	"errors"
	"testing"

	"adpipeline/internal/domain"
)

func TestCreateThenGetRoundTrips(t *testing.T) {
	repo := New()
	ctx := context.Background()
	job := domain.Job{ID: "job-1", OwnerID: "user-1", Status: domain.JobStatusQueued}

	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerID != "user-1" {
		t.Fatalf("OwnerID = %q", got.OwnerID)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	repo := New()
	ctx := context.Background()
	job := domain.Job{ID: "job-1"}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, job); err == nil {
		t.Fatal("expected error on duplicate create")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	repo := New()
	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMissingReturnsNotFound(t *testing.T) {
	repo := New()
	err := repo.Update(context.Background(), domain.Job{ID: "missing"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdatePersistsChanges(t *testing.T) {
	repo := New()
	ctx := context.Background()
	job := domain.Job{ID: "job-1", Status: domain.JobStatusQueued}
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	job.Status = domain.JobStatusProcessing
	job.ProgressPct = 30
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.JobStatusProcessing || got.ProgressPct != 30 {
		t.Fatalf("got = %+v", got)
	}
}

func TestDeleteRemovesJob(t *testing.T) {
	repo := New()
	ctx := context.Background()
	if err := repo.Create(ctx, domain.Job{ID: "job-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAccessIsRaceFree(t *testing.T) {
	repo := New()
	ctx := context.Background()
	if err := repo.Create(ctx, domain.Job{ID: "job-1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = repo.Get(ctx, "job-1")
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		job, err := repo.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		job.ProgressPct = i
		_ = repo.Update(ctx, job)
	}
	<-done
}
