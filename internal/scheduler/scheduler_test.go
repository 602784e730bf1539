package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/scheduler"
)

func TestUpdatePollingSchedule_EnableAndDisable(t *testing.T) {
	var polls int32
	s := scheduler.New(
		func(ctx context.Context) { atomic.AddInt32(&polls, 1) },
		func(ctx context.Context) {},
		logr.Discard(),
	)
	s.Start(false, 4)
	defer s.Stop(context.Background())

	status := s.Status()
	if status.JobEnabled {
		t.Fatal("expected jenkins_poller disabled at startup")
	}

	s.UpdatePollingSchedule(true, 1)
	status = s.Status()
	if !status.JobEnabled {
		t.Fatal("expected jenkins_poller enabled after UpdatePollingSchedule(true, ...)")
	}
	if status.NextRun == nil {
		t.Fatal("expected a next run time once enabled")
	}

	s.UpdatePollingSchedule(false, 1)
	status = s.Status()
	if status.JobEnabled {
		t.Fatal("expected jenkins_poller disabled after UpdatePollingSchedule(false, ...)")
	}
}

func TestScheduler_StatusReportsJobName(t *testing.T) {
	s := scheduler.New(func(ctx context.Context) {}, func(ctx context.Context) {}, logr.Discard())
	s.Start(true, 1)
	defer s.Stop(context.Background())

	status := s.Status()
	if status.JobName != "jenkins_poller" {
		t.Errorf("Status().JobName = %q, want jenkins_poller", status.JobName)
	}
	if !status.Running {
		t.Error("expected Running=true while scheduler is started")
	}
	time.Sleep(10 * time.Millisecond)
}
