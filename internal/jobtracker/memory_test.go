package jobtracker_test

import (
	"context"
	"testing"
	"time"

	"github.com/jordigilh/regtrack/internal/jobtracker"
)

func TestMemory_SetAndGetJob(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()

	job := jobtracker.Job{ID: "job-1", Type: "ingestion", Status: jobtracker.StatusRunning, StartedAt: time.Now()}
	if err := m.SetJob(ctx, job); err != nil {
		t.Fatalf("SetJob: %v", err)
	}

	got, ok, err := m.GetJob(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("GetJob: got=%v ok=%v err=%v", got, ok, err)
	}
	if got.Status != jobtracker.StatusRunning {
		t.Errorf("Status = %v, want running", got.Status)
	}
}

func TestMemory_UpdateJobField(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()
	_ = m.SetJob(ctx, jobtracker.Job{ID: "job-1", Status: jobtracker.StatusRunning})

	if err := m.UpdateJobField(ctx, "job-1", "status", jobtracker.StatusCompleted); err != nil {
		t.Fatalf("UpdateJobField: %v", err)
	}
	got, _, _ := m.GetJob(ctx, "job-1")
	if got.Status != jobtracker.StatusCompleted {
		t.Errorf("Status = %v, want completed", got.Status)
	}

	if err := m.UpdateJobField(ctx, "missing", "status", jobtracker.StatusFailed); err == nil {
		t.Error("expected error updating an untracked job")
	}
}

func TestMemory_PushAndPopLog(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()
	_ = m.SetJob(ctx, jobtracker.Job{ID: "job-1"})

	if err := m.PushLog(ctx, "job-1", "hello"); err != nil {
		t.Fatalf("PushLog: %v", err)
	}
	msg, ok, err := m.PopLog(ctx, "job-1", 100*time.Millisecond)
	if err != nil || !ok || msg != "hello" {
		t.Fatalf("PopLog = (%q, %v, %v), want (hello, true, nil)", msg, ok, err)
	}
}

func TestMemory_PopLogTimesOutWhenEmpty(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()
	_ = m.SetJob(ctx, jobtracker.Job{ID: "job-1"})

	start := time.Now()
	_, ok, err := m.PopLog(ctx, "job-1", 50*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("expected a timeout, got ok=%v err=%v", ok, err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("PopLog returned before the timeout elapsed")
	}
}

func TestMemory_PopLogOnUnknownJobReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()
	_, ok, err := m.PopLog(ctx, "never-created", time.Second)
	if err != nil || ok {
		t.Fatalf("expected (false, nil) for an unknown job, got ok=%v err=%v", ok, err)
	}
}

func TestMemory_RemoveQueueClearsJobAndLogs(t *testing.T) {
	ctx := context.Background()
	m := jobtracker.NewMemory()
	_ = m.SetJob(ctx, jobtracker.Job{ID: "job-1"})
	_ = m.PushLog(ctx, "job-1", "hello")

	if err := m.RemoveQueue(ctx, "job-1"); err != nil {
		t.Fatalf("RemoveQueue: %v", err)
	}
	if _, ok, _ := m.GetJob(ctx, "job-1"); ok {
		t.Error("expected job state removed")
	}
}
