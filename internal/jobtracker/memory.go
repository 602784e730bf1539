package jobtracker

import (
	"context"
	"sync"
	"time"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// Memory is the default, in-process Tracker: a mutex-guarded map of
// Job state plus one buffered channel per job acting as its log
// queue (spec §4.8 "process-wide map... plus jobId -> Queue<string>").
type Memory struct {
	mu     sync.Mutex
	jobs   map[string]Job
	queues map[string]chan string
}

// NewMemory builds an empty in-process Tracker.
func NewMemory() *Memory {
	return &Memory{
		jobs:   make(map[string]Job),
		queues: make(map[string]chan string),
	}
}

const logQueueCapacity = 1024

// logQueueSaturatedWarning is pushed in place of a dropped log line so
// an SSE client sees it lost entries instead of silently missing them.
const logQueueSaturatedWarning = "[job tracker] log queue saturated; oldest entries were dropped"

func (m *Memory) SetJob(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	if _, ok := m.queues[job.ID]; !ok {
		m.queues[job.ID] = make(chan string, logQueueCapacity)
	}
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID string) (Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	return j, ok, nil
}

func (m *Memory) UpdateJobField(_ context.Context, jobID, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return apperrors.Newf(apperrors.ErrorTypeNotFound, "job %q is not tracked", jobID)
	}

	switch key {
	case "status":
		s, ok := value.(Status)
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeValidation, "status field requires a jobtracker.Status value")
		}
		j.Status = s
	case "error":
		switch v := value.(type) {
		case nil:
			j.Error = nil
		case string:
			j.Error = &v
		default:
			return apperrors.Newf(apperrors.ErrorTypeValidation, "error field requires a string value")
		}
	case "completed_at":
		t, ok := value.(time.Time)
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeValidation, "completed_at field requires a time.Time value")
		}
		j.CompletedAt = &t
	default:
		return apperrors.Newf(apperrors.ErrorTypeValidation, "unknown job field %q", key)
	}

	m.jobs[jobID] = j
	return nil
}

func (m *Memory) PushLog(_ context.Context, jobID, msg string) error {
	m.mu.Lock()
	q, ok := m.queues[jobID]
	if !ok {
		q = make(chan string, logQueueCapacity)
		m.queues[jobID] = q
	}
	m.mu.Unlock()

	select {
	case q <- msg:
		return nil
	default:
		// Queue is saturated: drop the two oldest entries to make room
		// for both a visible warning event and the new message, rather
		// than blocking the pushing worker or losing lines unannounced
		// (spec §5 "SSE preserves FIFO push order" for delivered
		// messages, not unbounded buffering).
		for i := 0; i < 2; i++ {
			select {
			case <-q:
			default:
			}
		}
		select {
		case q <- logQueueSaturatedWarning:
		default:
		}
		select {
		case q <- msg:
		default:
		}
		return nil
	}
}

func (m *Memory) PopLog(ctx context.Context, jobID string, timeout time.Duration) (string, bool, error) {
	m.mu.Lock()
	q, ok := m.queues[jobID]
	m.mu.Unlock()
	if !ok {
		return "", false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-q:
		return msg, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (m *Memory) RemoveQueue(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, jobID)
	delete(m.jobs, jobID)
	return nil
}
