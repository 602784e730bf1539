package store

import (
	"context"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// UpsertTestcaseMetadataInput is a single row from a TestRail/metadata
// sync source.
type UpsertTestcaseMetadataInput struct {
	TestcaseName     string
	TestCaseID       *string
	Priority         *Priority
	TestrailID       *string
	Component        *string
	AutomationStatus *string
	Module           *string
	TestState        *string
	TestClassName    *string
	TestPath         *string
	Topology         *string
}

// UpsertTestcaseMetadata inserts or updates a TestcaseMetadata row by
// its unique testcase_name, returning the fields that changed so the
// caller can append TestcaseMetadataChange audit rows (spec §4.8
// "metadata sync diffing").
func (s *Store) UpsertTestcaseMetadata(ctx context.Context, db DBTX, in UpsertTestcaseMetadataInput) (*TestcaseMetadata, []TestcaseMetadataChange, error) {
	var before TestcaseMetadata
	var hadBefore bool
	err := db.GetContext(ctx, &before, `SELECT * FROM testcase_metadata WHERE testcase_name = $1`, in.TestcaseName)
	if err == nil {
		hadBefore = true
	} else if err != ErrNotFound {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "lookup testcase metadata")
	}

	var after TestcaseMetadata
	err = db.GetContext(ctx, &after, `
		INSERT INTO testcase_metadata (
			testcase_name, test_case_id, priority, testrail_id, component,
			automation_status, module, test_state, test_class_name, test_path, topology
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (testcase_name) DO UPDATE SET
			test_case_id = EXCLUDED.test_case_id,
			priority = EXCLUDED.priority,
			testrail_id = EXCLUDED.testrail_id,
			component = EXCLUDED.component,
			automation_status = EXCLUDED.automation_status,
			module = EXCLUDED.module,
			test_state = EXCLUDED.test_state,
			test_class_name = EXCLUDED.test_class_name,
			test_path = EXCLUDED.test_path,
			topology = EXCLUDED.topology
		RETURNING *`,
		in.TestcaseName, in.TestCaseID, in.Priority, in.TestrailID, in.Component,
		in.AutomationStatus, in.Module, in.TestState, in.TestClassName, in.TestPath, in.Topology)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "upsert testcase metadata")
	}

	var changes []TestcaseMetadataChange
	if hadBefore {
		changes = diffTestcaseMetadata(before, after)
	}
	return &after, changes, nil
}

// diffTestcaseMetadata returns one TestcaseMetadataChange per tracked
// field (priority, component, automation_status, module, test_state,
// topology) that differs between before and after, ready for
// InsertMetadataChanges. The id and path fields are not compared.
func diffTestcaseMetadata(before, after TestcaseMetadata) []TestcaseMetadataChange {
	var changes []TestcaseMetadataChange
	add := func(field string, oldV, newV *string) {
		if ptrEqual(oldV, newV) {
			return
		}
		changes = append(changes, TestcaseMetadataChange{
			TestcaseName: after.TestcaseName,
			Field:        field,
			OldValue:     oldV,
			NewValue:     newV,
		})
	}

	add("priority", priorityToStr(before.Priority), priorityToStr(after.Priority))
	add("component", before.Component, after.Component)
	add("automation_status", before.AutomationStatus, after.AutomationStatus)
	add("module", before.Module, after.Module)
	add("test_state", before.TestState, after.TestState)
	add("topology", before.Topology, after.Topology)
	return changes
}

func priorityToStr(p *Priority) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ListTestcaseMetadata returns every TestcaseMetadata row.
func (s *Store) ListTestcaseMetadata(ctx context.Context, db DBTX) ([]TestcaseMetadata, error) {
	var rows []TestcaseMetadata
	if err := db.SelectContext(ctx, &rows, `SELECT * FROM testcase_metadata ORDER BY testcase_name`); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list testcase metadata")
	}
	return rows, nil
}

// InsertMetadataChanges persists the audit rows produced by a sync.
func (s *Store) InsertMetadataChanges(ctx context.Context, db DBTX, changes []TestcaseMetadataChange) error {
	if len(changes) == 0 {
		return nil
	}
	named, err := asNamedDB(db)
	if err != nil {
		return err
	}
	_, err = named.NamedExecContext(ctx, `
		INSERT INTO testcase_metadata_changes (testcase_name, field, old_value, new_value, changed_at)
		VALUES (:testcase_name, :field, :old_value, :new_value, now())`, changes)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "insert metadata changes")
	}
	return nil
}
