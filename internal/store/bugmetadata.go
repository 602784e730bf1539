package store

import (
	"context"
	"encoding/json"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// UpsertBugMetadataInput is a single row from a bug-tracker refresh.
type UpsertBugMetadataInput struct {
	DefectID         string
	BugType          BugType
	URL              string
	Status           *string
	Summary          *string
	Priority         *string
	Assignee         *string
	Component        *string
	Resolution       *string
	AffectedVersions *string
	Labels           json.RawMessage
	IsActive         bool
}

// UpsertBugMetadata inserts or updates a BugMetadata row by
// (defect_id, bug_type) (spec §3 UNIQUE).
func (s *Store) UpsertBugMetadata(ctx context.Context, db DBTX, in UpsertBugMetadataInput) (*BugMetadata, error) {
	var b BugMetadata
	err := db.GetContext(ctx, &b, `
		INSERT INTO bug_metadata (
			defect_id, bug_type, url, status, summary, priority, assignee,
			component, resolution, affected_versions, labels, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (defect_id, bug_type) DO UPDATE SET
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			priority = EXCLUDED.priority,
			assignee = EXCLUDED.assignee,
			component = EXCLUDED.component,
			resolution = EXCLUDED.resolution,
			affected_versions = EXCLUDED.affected_versions,
			labels = EXCLUDED.labels,
			is_active = EXCLUDED.is_active
		RETURNING *`,
		in.DefectID, in.BugType, in.URL, in.Status, in.Summary, in.Priority, in.Assignee,
		in.Component, in.Resolution, in.AffectedVersions, in.Labels, in.IsActive)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "upsert bug metadata")
	}
	return &b, nil
}

// ReplaceBugTestcaseMappings deletes every mapping for bugID and
// inserts caseIDs in their place — the "delete-all-then-insert"
// rebuild spec §3 calls for on every bug refresh, rather than a diff.
func (s *Store) ReplaceBugTestcaseMappings(ctx context.Context, db DBTX, bugID int64, caseIDs []string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM bug_testcase_mappings WHERE bug_id = $1`, bugID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "clear bug testcase mappings")
	}
	if len(caseIDs) == 0 {
		return nil
	}

	type mappingRow struct {
		BugID  int64  `db:"bug_id"`
		CaseID string `db:"case_id"`
	}
	rows := make([]mappingRow, len(caseIDs))
	for i, c := range caseIDs {
		rows[i] = mappingRow{BugID: bugID, CaseID: c}
	}

	named, err := asNamedDB(db)
	if err != nil {
		return err
	}
	if _, err := named.NamedExecContext(ctx, `
		INSERT INTO bug_testcase_mappings (bug_id, case_id) VALUES (:bug_id, :case_id)`, rows); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "insert bug testcase mappings")
	}
	return nil
}

// ListActiveBugsForTestcase returns the active BugMetadata rows
// mapped to a test_case_id or testrail_id, used by the Analytics
// Engine's bug-impact report (spec §4.7.5).
func (s *Store) ListActiveBugsForTestcase(ctx context.Context, db DBTX, caseID string) ([]BugMetadata, error) {
	var bugs []BugMetadata
	err := db.SelectContext(ctx, &bugs, `
		SELECT b.*
		FROM bug_metadata b
		JOIN bug_testcase_mappings m ON m.bug_id = b.id
		WHERE m.case_id = $1 AND b.is_active`, caseID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list active bugs for testcase")
	}
	return bugs, nil
}

// ListActiveBugMetadata returns every active BugMetadata row.
func (s *Store) ListActiveBugMetadata(ctx context.Context, db DBTX) ([]BugMetadata, error) {
	var bugs []BugMetadata
	if err := db.SelectContext(ctx, &bugs, `SELECT * FROM bug_metadata WHERE is_active ORDER BY defect_id`); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list active bug metadata")
	}
	return bugs, nil
}

// ListBugTestcaseMappings returns every bug_testcase_mappings row for
// active bugs in one round trip, so the Analytics Engine's bug-impact
// report can build its case_id -> bug_ids index without a query per
// test case (spec §9 "N+1 avoidance").
func (s *Store) ListBugTestcaseMappings(ctx context.Context, db DBTX) ([]BugTestcaseMapping, error) {
	var rows []BugTestcaseMapping
	err := db.SelectContext(ctx, &rows, `
		SELECT m.* FROM bug_testcase_mappings m
		JOIN bug_metadata b ON b.id = m.bug_id
		WHERE b.is_active`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list bug testcase mappings")
	}
	return rows, nil
}
