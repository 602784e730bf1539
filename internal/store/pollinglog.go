package store

import (
	"context"
	"time"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// StartPollingLog records the start of a single Ingestion Pipeline
// tick (spec §4.5), returning the new JenkinsPollingLog's id.
func (s *Store) StartPollingLog(ctx context.Context, db DBTX, releaseID *int64) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id, `
		INSERT INTO jenkins_polling_logs (release_id, status, builds_found, modules_ok, modules_fail, started_at)
		VALUES ($1, 'running', 0, 0, 0, now())
		RETURNING id`, releaseID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "start polling log")
	}
	return id, nil
}

// FinishPollingLog closes out a JenkinsPollingLog with its final tallies.
func (s *Store) FinishPollingLog(ctx context.Context, db DBTX, id int64, status string, buildsFound, modulesOK, modulesFail int, errText *string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE jenkins_polling_logs
		SET status = $2, builds_found = $3, modules_ok = $4, modules_fail = $5, error_text = $6, finished_at = now()
		WHERE id = $1`, id, status, buildsFound, modulesOK, modulesFail, errText)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "finish polling log")
	}
	return nil
}

// ListRecentPollingLogs returns the most recent JenkinsPollingLog rows.
func (s *Store) ListRecentPollingLogs(ctx context.Context, db DBTX, limit int) ([]JenkinsPollingLog, error) {
	var rows []JenkinsPollingLog
	err := db.SelectContext(ctx, &rows, `
		SELECT * FROM jenkins_polling_logs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list polling logs")
	}
	return rows, nil
}

// StartMetadataSyncLog records the start of a TestcaseMetadata or
// BugMetadata refresh (spec §4.8).
func (s *Store) StartMetadataSyncLog(ctx context.Context, db DBTX, syncType string) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id, `
		INSERT INTO metadata_sync_logs (sync_type, status, records_in, records_out, started_at)
		VALUES ($1, 'running', 0, 0, now())
		RETURNING id`, syncType)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "start metadata sync log")
	}
	return id, nil
}

// FinishMetadataSyncLog closes out a MetadataSyncLog.
func (s *Store) FinishMetadataSyncLog(ctx context.Context, db DBTX, id int64, status string, recordsIn, recordsOut int, errText *string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE metadata_sync_logs
		SET status = $2, records_in = $3, records_out = $4, error_text = $5, finished_at = now()
		WHERE id = $1`, id, status, recordsIn, recordsOut, errText)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "finish metadata sync log")
	}
	return nil
}

// ListRecentMetadataChanges returns the most recent
// TestcaseMetadataChange rows, newest first.
func (s *Store) ListRecentMetadataChanges(ctx context.Context, db DBTX, since time.Time, limit int) ([]TestcaseMetadataChange, error) {
	var rows []TestcaseMetadataChange
	err := db.SelectContext(ctx, &rows, `
		SELECT * FROM testcase_metadata_changes
		WHERE changed_at >= $1
		ORDER BY changed_at DESC LIMIT $2`, since, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list metadata changes")
	}
	return rows, nil
}
