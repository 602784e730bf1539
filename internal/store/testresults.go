package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

// InsertTestResultInput is a single row the Import Service has
// computed and is ready to persist, after I2 (ERROR folded to
// FAILED) and I5 (testcase_module derived) have already been applied
// by the caller.
type InsertTestResultInput struct {
	JobID            int64
	FilePath         string
	ClassName        string
	TestName         string
	Status           TestStatus
	SetupIP          *string
	JenkinsTopology  *string
	OrderIndex       int
	WasRerun         bool
	RerunStillFailed bool
	FailureMessage   *string
	Priority         *Priority
	TopologyMetadata *string
	TestcaseModule   *string
}

// InsertTestResults bulk-inserts rows for a single job. Each call
// happens inside the importing worker's own transaction.
func (s *Store) InsertTestResults(ctx context.Context, db DBTX, rows []InsertTestResultInput) error {
	if len(rows) == 0 {
		return nil
	}
	const stmt = `
		INSERT INTO test_results (
			job_id, file_path, class_name, test_name, status, setup_ip, jenkins_topology,
			order_index, was_rerun, rerun_still_failed, failure_message, priority,
			topology_metadata, testcase_module, created_at
		) VALUES (
			:job_id, :file_path, :class_name, :test_name, :status, :setup_ip, :jenkins_topology,
			:order_index, :was_rerun, :rerun_still_failed, :failure_message, :priority,
			:topology_metadata, :testcase_module, now()
		)`

	named, err := asNamedDB(db)
	if err != nil {
		return err
	}
	if _, err := named.NamedExecContext(ctx, stmt, rows); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeImport, "insert test results")
	}
	return nil
}

// DedupTestResults implements I4: for any (job_id, file_path,
// class_name, test_name) with more than one row, keep only the
// highest-id row. Returns the number of rows removed.
func (s *Store) DedupTestResults(ctx context.Context, db DBTX, jobID int64) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM test_results tr
		WHERE tr.job_id = $1
		AND tr.id NOT IN (
			SELECT MAX(id) FROM test_results
			WHERE job_id = $1
			GROUP BY file_path, class_name, test_name
		)`, jobID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "dedup test results")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "dedup rows affected")
	}
	return n, nil
}

// ListTestResultsByJob returns every TestResult for a Job.
func (s *Store) ListTestResultsByJob(ctx context.Context, db DBTX, jobID int64) ([]TestResult, error) {
	var results []TestResult
	err := db.SelectContext(ctx, &results, `
		SELECT * FROM test_results WHERE job_id = $1 ORDER BY order_index`, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list test results by job")
	}
	return results, nil
}

// ListTestResultsForJobs returns every TestResult across a set of
// jobs in a single round trip — the basis for trend computation,
// which must assemble a test_key -> TestTrend map spanning many jobs
// without issuing one query per job.
func (s *Store) ListTestResultsForJobs(ctx context.Context, db DBTX, jobIDs []int64) ([]TestResult, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM test_results WHERE job_id IN (?) ORDER BY job_id, order_index`, jobIDs)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "build list test results for jobs query")
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var results []TestResult
	if err := db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "list test results for jobs")
	}
	return results, nil
}

// CountFlakyPassesByJob implements the Exclude-Flaky adjustment's
// single batched query (spec §4.7.3): for the given flaky test keys
// and job ids, returns job_id -> count of rows in those jobs whose
// (file_path, class_name, test_name) is in the flaky set and whose
// status is PASSED.
func (s *Store) CountFlakyPassesByJob(ctx context.Context, db DBTX, jobIDs []int64, flakyKeys [][3]string) (map[int64]int, error) {
	counts := make(map[int64]int, len(jobIDs))
	if len(jobIDs) == 0 || len(flakyKeys) == 0 {
		return counts, nil
	}

	tuples := make([]string, len(flakyKeys))
	args := make([]any, 0, len(jobIDs)+len(flakyKeys)*3)
	for _, id := range jobIDs {
		args = append(args, id)
	}
	n := len(args)
	for i, k := range flakyKeys {
		tuples[i] = fmt.Sprintf("($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, k[0], k[1], k[2])
		n += 3
	}

	jobPlaceholders := make([]string, len(jobIDs))
	for i := range jobIDs {
		jobPlaceholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		SELECT tr.job_id AS job_id, COUNT(*) AS n
		FROM test_results tr
		WHERE tr.job_id IN (%s)
		AND tr.status = 'PASSED'
		AND (tr.file_path, tr.class_name, tr.test_name) IN (%s)
		GROUP BY tr.job_id`,
		strings.Join(jobPlaceholders, ", "), strings.Join(tuples, ", "))

	var out []struct {
		JobID int64 `db:"job_id"`
		N     int   `db:"n"`
	}
	if err := db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "count flaky passes by job")
	}
	for _, row := range out {
		counts[row.JobID] = row.N
	}
	return counts, nil
}

// BackfillPriorityFromMetadata sets priority and topology_metadata on
// every TestResult whose normalized test_name matches a
// TestcaseMetadata row, for rows where priority is currently null
// (spec §3 "priority... may be backfilled later").
func (s *Store) BackfillPriorityFromMetadata(ctx context.Context, db DBTX) (int64, error) {
	normalizedTR := NormalizedNameSQLExpr("tr.test_name")
	normalizedTC := NormalizedNameSQLExpr("tc.testcase_name")

	res, err := db.ExecContext(ctx, `
		UPDATE test_results tr
		SET priority = tc.priority, topology_metadata = tc.topology
		FROM testcase_metadata tc
		WHERE `+normalizedTR+` = `+normalizedTC+`
		AND tr.priority IS NULL`)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "backfill priority from metadata")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrorTypeDatabase, "backfill rows affected")
	}
	return n, nil
}

// asNamedDB narrows a DBTX to the subset of sqlx capable of
// NamedExecContext; both *sqlx.DB and *sqlx.Tx implement it.
func asNamedDB(db DBTX) (namedExecer, error) {
	if n, ok := db.(namedExecer); ok {
		return n, nil
	}
	return nil, apperrors.New(apperrors.ErrorTypeInternal, "DBTX does not support named exec")
}

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}
