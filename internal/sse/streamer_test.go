package sse_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/jobtracker"
	"github.com/jordigilh/regtrack/internal/sse"
)

func TestStreamer_EmitsLogsThenDrainsAndCompletes(t *testing.T) {
	ctx := context.Background()
	tracker := jobtracker.NewMemory()
	_ = tracker.SetJob(ctx, jobtracker.Job{ID: "job-1", Status: jobtracker.StatusRunning})
	_ = tracker.PushLog(ctx, "job-1", "line one")

	streamer := sse.New(tracker, sse.Config{DrainTimeout: 80 * time.Millisecond, DrainPollInterval: 10 * time.Millisecond}, logr.Discard())

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = tracker.UpdateJobField(ctx, "job-1", "status", jobtracker.StatusCompleted)
		_ = tracker.PushLog(ctx, "job-1", "line two, after terminal")
		close(done)
	}()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream/job-1", nil)

	if err := streamer.Stream(rec, req, "job-1"); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "line one") {
		t.Errorf("expected body to contain pre-terminal log, got %q", body)
	}
	if !strings.Contains(body, "line two, after terminal") {
		t.Error("expected drain phase to deliver a log pushed after the job went terminal")
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Error("expected a final status event")
	}
	if !strings.Contains(body, "event: complete") {
		t.Error("expected a complete event")
	}

	if _, ok, _ := tracker.GetJob(ctx, "job-1"); ok {
		// RemoveQueue also deletes job state in the in-memory backend;
		// confirm cleanup ran (spec §4.9 step 3).
		t.Error("expected job state removed after stream completion")
	}
}
