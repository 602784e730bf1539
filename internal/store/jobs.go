package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// UpsertJobInput is the job-level data the Import Service has
// computed and is ready to persist.
type UpsertJobInput struct {
	ModuleID     int64
	JobID        string
	ParentJobID  *string
	Total        int
	Passed       int
	Failed       int
	Skipped      int
	JenkinsURL   string
	Version      *string
	ExecutedAt   *time.Time
	DownloadedAt *time.Time
}

// GetJob looks up a Job by (module_id, job_id).
func (s *Store) GetJob(ctx context.Context, db DBTX, moduleID int64, jobID string) (*Job, error) {
	var j Job
	err := db.GetContext(ctx, &j, `SELECT * FROM jobs WHERE module_id = $1 AND job_id = $2`, moduleID, jobID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup job")
	}
	return &j, nil
}

// UpsertJob inserts or fully replaces a Job row's statistics by
// (module_id, job_id) (spec §3 UNIQUE, §4.3 step 3).
func (s *Store) UpsertJob(ctx context.Context, db DBTX, in UpsertJobInput) (*Job, error) {
	passRate := ComputePassRate(in.Total, in.Passed)

	var j Job
	err := db.GetContext(ctx, &j, `
		INSERT INTO jobs (module_id, job_id, parent_job_id, total, passed, failed, skipped, pass_rate,
			jenkins_url, version, executed_at, downloaded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (module_id, job_id) DO UPDATE SET
			parent_job_id = EXCLUDED.parent_job_id,
			total = EXCLUDED.total,
			passed = EXCLUDED.passed,
			failed = EXCLUDED.failed,
			skipped = EXCLUDED.skipped,
			pass_rate = EXCLUDED.pass_rate,
			jenkins_url = EXCLUDED.jenkins_url,
			version = EXCLUDED.version,
			executed_at = EXCLUDED.executed_at,
			downloaded_at = EXCLUDED.downloaded_at
		RETURNING *`,
		in.ModuleID, in.JobID, in.ParentJobID, in.Total, in.Passed, in.Failed, in.Skipped, passRate,
		in.JenkinsURL, in.Version, in.ExecutedAt, in.DownloadedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "upsert job")
	}
	return &j, nil
}

// DeleteJob removes a Job; cascades to its TestResults (I3).
func (s *Store) DeleteJob(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "delete job")
	}
	return nil
}

// ListJobsByModule returns every Job for a Jenkins-job Module,
// ordered by job_id's numeric value ascending.
func (s *Store) ListJobsByModule(ctx context.Context, db DBTX, moduleID int64) ([]Job, error) {
	var jobs []Job
	err := db.SelectContext(ctx, &jobs, `
		SELECT * FROM jobs WHERE module_id = $1 ORDER BY (job_id::bigint) ASC`, moduleID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list jobs by module")
	}
	return jobs, nil
}

// ListJobsForRelease returns every Job belonging to any module of the
// given release, optionally filtered to jobs with at least one
// TestResult whose testcase_module equals testcaseModule (spec §4.7.1
// "authoritative" module selection). When testcaseModule is empty the
// Jenkins-job module name filter (legacy) is used instead via
// legacyModule.
func (s *Store) ListJobsForRelease(ctx context.Context, db DBTX, releaseID int64, legacyModule, testcaseModule string) ([]Job, error) {
	var jobs []Job
	var err error
	switch {
	case testcaseModule != "":
		err = db.SelectContext(ctx, &jobs, `
			SELECT DISTINCT j.*
			FROM jobs j
			JOIN modules m ON m.id = j.module_id
			JOIN test_results tr ON tr.job_id = j.id
			WHERE m.release_id = $1 AND tr.testcase_module = $2
			ORDER BY (j.job_id::bigint) ASC`, releaseID, testcaseModule)
	case legacyModule != "":
		err = db.SelectContext(ctx, &jobs, `
			SELECT j.*
			FROM jobs j
			JOIN modules m ON m.id = j.module_id
			WHERE m.release_id = $1 AND m.name = $2
			ORDER BY (j.job_id::bigint) ASC`, releaseID, legacyModule)
	default:
		err = db.SelectContext(ctx, &jobs, `
			SELECT j.*
			FROM jobs j
			JOIN modules m ON m.id = j.module_id
			WHERE m.release_id = $1
			ORDER BY (j.job_id::bigint) ASC`, releaseID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list jobs for release")
	}
	return jobs, nil
}

// ListParentJobIDs returns the distinct effective parent job ids for
// a release/module pair, ordered by descending numeric value — the
// basis for the jobLimit=N "top-N parents" restriction (spec §4.7.1).
func (s *Store) ListParentJobIDs(ctx context.Context, db DBTX, releaseID int64, testcaseModule string, limit int) ([]string, error) {
	var ids []string
	err := db.SelectContext(ctx, &ids, `
		SELECT DISTINCT COALESCE(j.parent_job_id, j.job_id) AS pid
		FROM jobs j
		JOIN modules m ON m.id = j.module_id
		JOIN test_results tr ON tr.job_id = j.id
		WHERE m.release_id = $1 AND tr.testcase_module = $2
		ORDER BY (COALESCE(j.parent_job_id, j.job_id))::bigint DESC
		LIMIT $3`, releaseID, testcaseModule, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list parent job ids")
	}
	return ids, nil
}
