// Package jobtracker implements the Job Tracker (spec §4.8): a
// process-wide jobId -> job-state map plus a jobId -> log queue,
// backing the SSE Streamer's poll/drain loop. The default backend is
// an in-memory map; spec §9 ("for multi-process deployments, replace
// with a shared FIFO behind the same push/pop contract") is satisfied
// by the optional Redis-backed implementation in redis.go.
package jobtracker

import (
	"context"
	"time"
)

// Status is a background job's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether status ∉ {pending, running}, the
// condition the SSE Streamer's poll loop checks every iteration.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the tracked state of one background job (spec §4.8).
type Job struct {
	ID          string
	Type        string
	Status      Status
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       *string
}

// Tracker is the Job Tracker's contract: a jobId -> Job map plus a
// jobId -> Queue<string> of log lines, satisfied by both the
// in-process map (Memory) and the optional Redis-backed
// implementation.
type Tracker interface {
	// SetJob creates or replaces a Job's tracked state.
	SetJob(ctx context.Context, job Job) error
	// GetJob returns the tracked state, or (Job{}, false) if unknown.
	GetJob(ctx context.Context, jobID string) (Job, bool, error)
	// UpdateJobField mutates a single field of an existing job by name
	// (spec §4.8 updateJobField(jobId, key, value)): one of "status",
	// "error", "completed_at".
	UpdateJobField(ctx context.Context, jobID, key string, value any) error
	// PushLog appends a log line to jobID's queue.
	PushLog(ctx context.Context, jobID, msg string) error
	// PopLog waits up to timeout for a log line, returning ("", false,
	// nil) on timeout.
	PopLog(ctx context.Context, jobID string, timeout time.Duration) (string, bool, error)
	// RemoveQueue drops jobID's queue entry (spec §4.9 step 3, called
	// once the SSE Streamer's drain phase exits).
	RemoveQueue(ctx context.Context, jobID string) error
}
