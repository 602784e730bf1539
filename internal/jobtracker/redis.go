package jobtracker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// RedisConfig addresses the shared Redis instance backing a
// multi-process deployment's Job Tracker (spec §9 "for multi-process
// deployments, replace with a shared FIFO behind the same push/pop
// contract").
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Tracker backed by a shared redis instance: job state is
// a JSON value at "jobtracker:job:<id>", and each job's log queue is
// a redis list at "jobtracker:logs:<id>", popped with BLPOP so
// PopLog's timeout blocks at the server rather than busy-polling.
type Redis struct {
	client *redis.Client
}

// NewRedis opens a client against cfg. The connection is lazy; use
// Ping to verify reachability before relying on it.
func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Ping verifies the redis connection is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func jobKey(jobID string) string  { return "jobtracker:job:" + jobID }
func logsKey(jobID string) string { return "jobtracker:logs:" + jobID }

func (r *Redis) SetJob(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "marshal job state")
	}
	if err := r.client.Set(ctx, jobKey(job.ID), raw, 0).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "set job state")
	}
	return nil
}

func (r *Redis) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	raw, err := r.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "get job state")
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "unmarshal job state")
	}
	return job, true, nil
}

func (r *Redis) UpdateJobField(ctx context.Context, jobID, key string, value any) error {
	job, ok, err := r.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Newf(apperrors.ErrorTypeNotFound, "job %q is not tracked", jobID)
	}

	switch key {
	case "status":
		s, ok := value.(Status)
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeValidation, "status field requires a jobtracker.Status value")
		}
		job.Status = s
	case "error":
		switch v := value.(type) {
		case nil:
			job.Error = nil
		case string:
			job.Error = &v
		default:
			return apperrors.Newf(apperrors.ErrorTypeValidation, "error field requires a string value")
		}
	case "completed_at":
		t, ok := value.(time.Time)
		if !ok {
			return apperrors.Newf(apperrors.ErrorTypeValidation, "completed_at field requires a time.Time value")
		}
		job.CompletedAt = &t
	default:
		return apperrors.Newf(apperrors.ErrorTypeValidation, "unknown job field %q", key)
	}

	return r.SetJob(ctx, job)
}

// PushLog caps the queue at logQueueCapacity entries, dropping the
// oldest first and pushing logQueueSaturatedWarning ahead of the new
// message when the queue is already full, matching Memory's bounded
// buffered channel so the two Tracker backends give the same
// drop-oldest behavior under load.
func (r *Redis) PushLog(ctx context.Context, jobID, msg string) error {
	key := logsKey(jobID)
	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "push log")
	}
	pipe := r.client.TxPipeline()
	if n >= logQueueCapacity {
		pipe.RPush(ctx, key, logQueueSaturatedWarning)
	}
	pipe.RPush(ctx, key, msg)
	pipe.LTrim(ctx, key, -logQueueCapacity, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "push log")
	}
	return nil
}

func (r *Redis) PopLog(ctx context.Context, jobID string, timeout time.Duration) (string, bool, error) {
	res, err := r.client.BLPop(ctx, timeout, logsKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "pop log")
	}
	// BLPOP on a single key returns [key, value].
	if len(res) != 2 {
		return "", false, nil
	}
	return res[1], true, nil
}

func (r *Redis) RemoveQueue(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, logsKey(jobID), jobKey(jobID)).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "remove job queue")
	}
	return nil
}
