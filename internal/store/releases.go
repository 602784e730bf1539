package store

import (
	"context"
	"database/sql"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// GetOrCreateRelease upserts a Release by its unique name, creating it
// active (is_active = true) only on first sight (spec §3 "Release/Module
// created lazily by Ingestion or admin").
func (s *Store) GetOrCreateRelease(ctx context.Context, db DBTX, name string) (*Release, error) {
	var r Release
	err := db.GetContext(ctx, &r, `SELECT * FROM releases WHERE name = $1`, name)
	if err == nil {
		return &r, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup release")
	}

	err = db.GetContext(ctx, &r, `
		INSERT INTO releases (name, is_active, jenkins_job_url, last_processed_build, created_at, updated_at)
		VALUES ($1, true, '', 0, now(), now())
		ON CONFLICT (name) DO UPDATE SET updated_at = releases.updated_at
		RETURNING *`, name)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "create release")
	}
	return &r, nil
}

// GetReleaseByName looks up a Release, returning apperrors NotFound if absent.
func (s *Store) GetReleaseByName(ctx context.Context, db DBTX, name string) (*Release, error) {
	var r Release
	err := db.GetContext(ctx, &r, `SELECT * FROM releases WHERE name = $1`, name)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrorTypeNotFound, "release not found").WithDetails(name)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup release")
	}
	return &r, nil
}

// ListActiveReleases returns every Release with is_active = true.
func (s *Store) ListActiveReleases(ctx context.Context, db DBTX) ([]Release, error) {
	var releases []Release
	if err := db.SelectContext(ctx, &releases, `SELECT * FROM releases WHERE is_active ORDER BY name`); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list active releases")
	}
	return releases, nil
}

// ListReleases returns every Release.
func (s *Store) ListReleases(ctx context.Context, db DBTX) ([]Release, error) {
	var releases []Release
	if err := db.SelectContext(ctx, &releases, `SELECT * FROM releases ORDER BY name`); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list releases")
	}
	return releases, nil
}

// AdvanceLastProcessedBuild sets last_processed_build to build if
// build is greater than the current value, implementing I7
// (monotonic non-decreasing under success).
func (s *Store) AdvanceLastProcessedBuild(ctx context.Context, db DBTX, releaseID int64, build int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE releases
		SET last_processed_build = $2, updated_at = now()
		WHERE id = $1 AND last_processed_build < $2`, releaseID, build)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "advance last_processed_build")
	}
	return nil
}

// DeleteRelease removes a Release; the schema's ON DELETE CASCADE
// takes care of its Modules/Jobs/TestResults (spec §3 lifecycle).
func (s *Store) DeleteRelease(ctx context.Context, db DBTX, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM releases WHERE id = $1`, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "delete release")
	}
	return nil
}
