// Package scheduler implements the Scheduler (spec §4.6): a
// robfig/cron/v3 cron instance running the jenkins_poller interval
// trigger and the daily bug_updater job, with dynamic reconfiguration
// of the poller's interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"

	"github.com/jordigilh/regtrack/internal/platform/logging"
)

const (
	jobNamePoller      = "jenkins_poller"
	jobNameBugUpdater  = "bug_updater"
	bugUpdaterSpec     = "0 2 * * *"
)

// Status is the response shape for the scheduler's status endpoint
// (spec §4.6 "Querying status").
type Status struct {
	Running    bool       `json:"running"`
	JobEnabled bool       `json:"job_enabled"`
	NextRun    *time.Time `json:"next_run"`
	JobName    string     `json:"job_name"`
}

// Scheduler wraps a cron.Cron, tracking the jenkins_poller entry id so
// its interval can be changed at runtime without touching bug_updater.
type Scheduler struct {
	cron *cron.Cron
	log  logr.Logger

	mu           sync.Mutex
	pollerID     cron.EntryID
	pollerActive bool
	pollFn       func(context.Context)
}

// New builds a Scheduler. pollFn and bugUpdateFn are the callbacks run
// by jenkins_poller and bug_updater respectively; both are wrapped
// with cron.SkipIfStillRunning so a slow run never overlaps itself
// (spec §4.6 "maxInstances=1").
func New(pollFn, bugUpdateFn func(context.Context), log logr.Logger) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))
	s := &Scheduler{cron: c, log: log, pollFn: pollFn}

	_, err := c.AddFunc(bugUpdaterSpec, cron.NewChain(cron.SkipIfStillRunning(cronLogger{log})).Then(runnerFunc(func() {
		bugUpdateFn(context.Background())
	})))
	if err != nil {
		log.Error(err, "failed to register bug_updater job")
	}
	return s
}

// Start begins running the cron scheduler and, if enabled, schedules
// jenkins_poller at intervalHours.
func (s *Scheduler) Start(enabled bool, intervalHours int) {
	s.cron.Start()
	if enabled {
		s.UpdatePollingSchedule(true, intervalHours)
	}
}

// Stop halts the cron scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// UpdatePollingSchedule implements spec §4.6 "Dynamic update":
// atomically removes any existing jenkins_poller entry and, if
// enabled, re-adds it at the new interval (replaceExisting=true).
func (s *Scheduler) UpdatePollingSchedule(enabled bool, intervalHours int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pollerActive {
		s.cron.Remove(s.pollerID)
		s.pollerActive = false
	}
	if !enabled {
		return
	}
	if intervalHours <= 0 {
		intervalHours = 4
	}

	spec := fmt.Sprintf("@every %dh", intervalHours)
	id, err := s.cron.AddFunc(spec, cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.log})).Then(runnerFunc(func() {
		s.pollFn(context.Background())
	})))
	if err != nil {
		s.log.Error(err, "failed to schedule jenkins_poller", "interval_hours", intervalHours)
		return
	}
	s.pollerID = id
	s.pollerActive = true
}

// Status reports the current scheduler state (spec §4.6).
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: true, JobEnabled: s.pollerActive, JobName: jobNamePoller}
	if s.pollerActive {
		entry := s.cron.Entry(s.pollerID)
		if !entry.Next.IsZero() {
			next := entry.Next
			st.NextRun = &next
		}
	}
	return st
}

// runnerFunc adapts a plain func() to cron.Job.
type runnerFunc func()

func (f runnerFunc) Run() { f() }

// cronLogger bridges logr.Logger into cron.Logger.
type cronLogger struct {
	log logr.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.V(1).Info(msg, append(logging.NewFields().Component("scheduler").KeysAndValues(), keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(err, msg, append(logging.NewFields().Component("scheduler").KeysAndValues(), keysAndValues...)...)
}
