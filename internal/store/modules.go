package store

import (
	"context"
	"database/sql"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// GetOrCreateModule upserts a Module by (release_id, name) (spec §3 UNIQUE).
func (s *Store) GetOrCreateModule(ctx context.Context, db DBTX, releaseID int64, name string) (*Module, error) {
	var m Module
	err := db.GetContext(ctx, &m, `SELECT * FROM modules WHERE release_id = $1 AND name = $2`, releaseID, name)
	if err == nil {
		return &m, nil
	}
	if err != sql.ErrNoRows {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup module")
	}

	err = db.GetContext(ctx, &m, `
		INSERT INTO modules (release_id, name) VALUES ($1, $2)
		ON CONFLICT (release_id, name) DO UPDATE SET name = modules.name
		RETURNING *`, releaseID, name)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "create module")
	}
	return &m, nil
}

// ListModulesByRelease returns every Jenkins-job Module for a release.
func (s *Store) ListModulesByRelease(ctx context.Context, db DBTX, releaseID int64) ([]Module, error) {
	var modules []Module
	if err := db.SelectContext(ctx, &modules, `SELECT * FROM modules WHERE release_id = $1 ORDER BY name`, releaseID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list modules")
	}
	return modules, nil
}

// ListTestcaseModules returns the distinct set of authoritative
// testcase_module values (spec §3 I5) seen across a release's test
// results — the set used to drive the "All Modules" breakdown (spec
// §4.7.3), which is NOT the same as ListModulesByRelease's Jenkins
// job-derived modules.
func (s *Store) ListTestcaseModules(ctx context.Context, db DBTX, releaseID int64) ([]string, error) {
	var modules []string
	err := db.SelectContext(ctx, &modules, `
		SELECT DISTINCT tr.testcase_module
		FROM test_results tr
		JOIN jobs j ON j.id = tr.job_id
		JOIN modules m ON m.id = j.module_id
		WHERE m.release_id = $1 AND tr.testcase_module IS NOT NULL
		ORDER BY tr.testcase_module`, releaseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list testcase modules")
	}
	return modules, nil
}
