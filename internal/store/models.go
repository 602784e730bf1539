// Package store is the Store (spec §4.2): relational persistence of
// releases, modules, jobs, test results, test-case and bug metadata,
// audit logs and settings, built on sqlx + pgx over Postgres.
package store

import (
	"encoding/json"
	"time"
)

// TestStatus is the persisted test-result status. Unlike the parser's
// Status, ERROR never appears here — it is folded into FAILED at
// import time (spec §3 I2).
type TestStatus string

const (
	StatusPassed  TestStatus = "PASSED"
	StatusFailed  TestStatus = "FAILED"
	StatusSkipped TestStatus = "SKIPPED"
)

// Priority is a TestcaseMetadata/TestResult priority classification.
type Priority string

const (
	PriorityP0      Priority = "P0"
	PriorityP1      Priority = "P1"
	PriorityP2      Priority = "P2"
	PriorityP3      Priority = "P3"
	PriorityUnknown Priority = "UNKNOWN"
)

// BugType distinguishes the two bug-tracker namespaces this service
// correlates test failures against.
type BugType string

const (
	BugTypeVLEI BugType = "VLEI"
	BugTypeVLENG BugType = "VLENG"
)

// Release is the top-level grouping entity (spec §3).
type Release struct {
	ID                int64     `db:"id"`
	Name              string    `db:"name"`
	IsActive          bool      `db:"is_active"`
	JenkinsJobURL     string    `db:"jenkins_job_url"`
	LastProcessedBuild int64    `db:"last_processed_build"`
	GitBranch         *string   `db:"git_branch"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Module belongs to exactly one Release (spec §3).
type Module struct {
	ID        int64  `db:"id"`
	ReleaseID int64  `db:"release_id"`
	Name      string `db:"name"`
}

// Job is a single CI module-job execution (spec §3).
type Job struct {
	ID             int64      `db:"id"`
	ModuleID       int64      `db:"module_id"`
	JobID          string     `db:"job_id"`
	ParentJobID    *string    `db:"parent_job_id"`
	Total          int        `db:"total"`
	Passed         int        `db:"passed"`
	Failed         int        `db:"failed"`
	Skipped        int        `db:"skipped"`
	PassRate       float64    `db:"pass_rate"`
	JenkinsURL     string     `db:"jenkins_url"`
	Version        *string    `db:"version"`
	CreatedAt      time.Time  `db:"created_at"`
	ExecutedAt     *time.Time `db:"executed_at"`
	DownloadedAt   *time.Time `db:"downloaded_at"`
}

// EffectiveParentJobID returns ParentJobID if set, falling back to
// JobID — the "parent_job_id falling back to job_id" rule used
// throughout the Analytics Engine (spec §4.7.1).
func (j Job) EffectiveParentJobID() string {
	if j.ParentJobID != nil && *j.ParentJobID != "" {
		return *j.ParentJobID
	}
	return j.JobID
}

// ComputePassRate implements I1: 100*passed/total when total>0, else 0.
func ComputePassRate(total, passed int) float64 {
	if total <= 0 {
		return 0
	}
	rate := 100 * float64(passed) / float64(total)
	return roundTo2(rate)
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// TestResult is a single test execution within a Job (spec §3).
type TestResult struct {
	ID                int64      `db:"id"`
	JobID             int64      `db:"job_id"`
	FilePath          string     `db:"file_path"`
	ClassName         string     `db:"class_name"`
	TestName          string     `db:"test_name"`
	Status            TestStatus `db:"status"`
	SetupIP           *string    `db:"setup_ip"`
	JenkinsTopology   *string    `db:"jenkins_topology"`
	OrderIndex        int        `db:"order_index"`
	WasRerun          bool       `db:"was_rerun"`
	RerunStillFailed  bool       `db:"rerun_still_failed"`
	FailureMessage    *string    `db:"failure_message"`
	Priority          *Priority  `db:"priority"`
	TopologyMetadata  *string    `db:"topology_metadata"`
	TestcaseModule    *string    `db:"testcase_module"`
	CreatedAt         time.Time  `db:"created_at"`
}

// TestKey returns the composite logical key used across the parser,
// importer and analytics engine.
func (t TestResult) TestKey() string {
	return t.FilePath + "::" + t.ClassName + "::" + t.TestName
}

// TestcaseMetadata is side-channel metadata about a named test case,
// matched to TestResult rows by normalized test name (spec §3 I6).
type TestcaseMetadata struct {
	ID                int64     `db:"id"`
	TestcaseName      string    `db:"testcase_name"`
	TestCaseID        *string   `db:"test_case_id"`
	Priority          *Priority `db:"priority"`
	TestrailID        *string   `db:"testrail_id"`
	Component         *string   `db:"component"`
	AutomationStatus  *string   `db:"automation_status"`
	Module            *string   `db:"module"`
	TestState         *string   `db:"test_state"`
	TestClassName     *string   `db:"test_class_name"`
	TestPath          *string   `db:"test_path"`
	Topology          *string   `db:"topology"`
}

// BugMetadata is a tracked defect correlated to test failures (spec §3).
type BugMetadata struct {
	ID               int64    `db:"id"`
	DefectID         string   `db:"defect_id"`
	BugType          BugType  `db:"bug_type"`
	URL              string   `db:"url"`
	Status           *string  `db:"status"`
	Summary          *string  `db:"summary"`
	Priority         *string  `db:"priority"`
	Assignee         *string  `db:"assignee"`
	Component        *string  `db:"component"`
	Resolution       *string  `db:"resolution"`
	AffectedVersions *string  `db:"affected_versions"`
	Labels           json.RawMessage `db:"labels"`
	IsActive         bool     `db:"is_active"`
}

// BugTestcaseMapping links a BugMetadata row to a test case (by
// test_case_id or testrail_id), rebuilt wholesale on every bug
// refresh (spec §3 lifecycle).
type BugTestcaseMapping struct {
	ID    int64  `db:"id"`
	BugID int64  `db:"bug_id"`
	CaseID string `db:"case_id"`
}

// JenkinsPollingLog audits a single Ingestion Pipeline tick.
type JenkinsPollingLog struct {
	ID          int64      `db:"id"`
	ReleaseID   *int64     `db:"release_id"`
	Status      string     `db:"status"`
	BuildsFound int        `db:"builds_found"`
	ModulesOK   int        `db:"modules_ok"`
	ModulesFail int        `db:"modules_fail"`
	ErrorText   *string    `db:"error_text"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
}

// MetadataSyncLog audits a TestcaseMetadata/BugMetadata refresh.
type MetadataSyncLog struct {
	ID         int64      `db:"id"`
	SyncType   string     `db:"sync_type"`
	Status     string     `db:"status"`
	RecordsIn  int        `db:"records_in"`
	RecordsOut int        `db:"records_out"`
	ErrorText  *string    `db:"error_text"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// TestcaseMetadataChange is a before/after audit row written whenever
// a sync mutates a TestcaseMetadata record.
type TestcaseMetadataChange struct {
	ID           int64     `db:"id"`
	TestcaseName string    `db:"testcase_name"`
	Field        string    `db:"field"`
	OldValue     *string   `db:"old_value"`
	NewValue     *string   `db:"new_value"`
	ChangedAt    time.Time `db:"changed_at"`
}

// AppSetting is a key/value row; Value holds a JSON-encoded payload.
type AppSetting struct {
	Key         string    `db:"key"`
	Value       string    `db:"value"`
	Description *string   `db:"description"`
	UpdatedAt   time.Time `db:"updated_at"`
}
