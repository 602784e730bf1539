// Package sse implements the SSE Streamer (C9): a poll/drain loop over
// the Job Tracker's log queue, rendered as a Server-Sent Events
// response (spec §4.9).
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/jobtracker"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

// Config controls the drain phase (spec §4.9, wired from
// config.SSEConfig).
type Config struct {
	DrainTimeout      time.Duration
	DrainPollInterval time.Duration
}

// Streamer drives one SSE response for a single job id.
type Streamer struct {
	tracker jobtracker.Tracker
	cfg     Config
	log     logr.Logger
}

// New builds a Streamer.
func New(tracker jobtracker.Tracker, cfg Config, log logr.Logger) *Streamer {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Second
	}
	if cfg.DrainPollInterval <= 0 {
		cfg.DrainPollInterval = 50 * time.Millisecond
	}
	return &Streamer{tracker: tracker, cfg: cfg, log: log}
}

const pollTimeout = 500 * time.Millisecond

// Stream writes jobID's log events to w until the job reaches a
// terminal status and its drain phase empties, implementing spec
// §4.9's full loop: poll while non-terminal, drain with a
// timer-reset-on-delivery once terminal, then a final status event,
// a complete event, and queue removal.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, jobID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return apperrors.New(apperrors.ErrorTypeInternal, "response writer does not support flushing")
	}
	metrics.SSEConnectionsActive.Inc()
	defer metrics.SSEConnectionsActive.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	fields := logging.NewFields().Component("sse").Operation("stream").JobID(jobID)

	for {
		job, ok, err := s.tracker.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if job.Status.IsTerminal() {
			break
		}

		msg, popped, err := s.tracker.PopLog(ctx, jobID, pollTimeout)
		if err != nil {
			return err
		}
		if popped {
			if err := writeLogEvent(w, msg); err != nil {
				return err
			}
			flusher.Flush()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	job, _, err := s.tracker.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	drainStart := time.Now()
	if err := s.drain(ctx, w, flusher, jobID); err != nil {
		return err
	}
	metrics.RecordSSEDrain(time.Since(drainStart))

	if err := writeFinalEvent(w, job); err != nil {
		return err
	}
	flusher.Flush()

	if _, err := fmt.Fprint(w, "event: complete\ndata: {}\n\n"); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "write complete event")
	}
	flusher.Flush()

	if err := s.tracker.RemoveQueue(ctx, jobID); err != nil {
		s.log.Error(err, "remove job queue failed", fields.KeysAndValues()...)
	}
	return nil
}

// drain keeps delivering log lines past the job's terminal status
// until DrainTimeout elapses with no new message, resetting the timer
// on every delivery (spec §4.9 step 2).
func (s *Streamer) drain(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, jobID string) error {
	lastDelivery := time.Now()
	for time.Since(lastDelivery) < s.cfg.DrainTimeout {
		msg, popped, err := s.tracker.PopLog(ctx, jobID, s.cfg.DrainPollInterval)
		if err != nil {
			return err
		}
		if !popped {
			continue
		}
		if err := writeLogEvent(w, msg); err != nil {
			return err
		}
		flusher.Flush()
		lastDelivery = time.Now()
	}
	return nil
}

func writeLogEvent(w http.ResponseWriter, msg string) error {
	payload, err := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: msg})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal log event")
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "write log event")
	}
	return nil
}

func writeFinalEvent(w http.ResponseWriter, job jobtracker.Job) error {
	payload, err := json.Marshal(struct {
		Status string  `json:"status"`
		Error  *string `json:"error"`
	}{Status: string(job.Status), Error: job.Error})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal final event")
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "write final event")
	}
	return nil
}
