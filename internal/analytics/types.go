package analytics

import "github.com/jordigilh/regtrack/internal/store"

// TestTrend is one test's status history across a window of jobs
// (spec §4.7.1), keyed by the composite test_key.
type TestTrend struct {
	FilePath         string
	ClassName        string
	TestName         string
	Priority         *store.Priority
	TopologyMetadata *string
	TestState        *string

	// ResultsByJob maps job_id -> status for every job the test
	// appeared in within the selected window.
	ResultsByJob map[string]store.TestStatus
	// RerunInfoByJob maps job_id -> (was_rerun, rerun_still_failed).
	RerunInfoByJob map[string]RerunInfo
	// JobModules maps job_id -> the row's testcase_module (derived from
	// its file path), for display when a testcase spans sibling module
	// jobs.
	JobModules map[string]string
	// ParentJobIDs is the set of effective parent job ids this test's
	// rows belong to.
	ParentJobIDs map[string]struct{}

	// jobIDsAsc is the test's own job ids, ascending by numeric value;
	// populated by buildTrends and consumed by the classifiers below.
	jobIDsAsc []string
}

// RerunInfo carries the importer's rerun bookkeeping for one job.
type RerunInfo struct {
	WasRerun         bool
	RerunStillFailed bool
}

// TestKey returns the trend's composite identity, matching
// store.TestResult.TestKey().
func (t *TestTrend) TestKey() string {
	return t.FilePath + "::" + t.ClassName + "::" + t.TestName
}

// Classification is the full set of derived boolean/status facts for
// a TestTrend (spec §4.7.2).
type Classification struct {
	LatestStatus    store.TestStatus
	IsAlwaysPassing bool
	IsAlwaysFailing bool
	IsRegression    bool
	IsFlaky         bool
	IsNewFailure    bool
}

// StatusCounts is the {total, passed, failed, skipped, pass_rate}
// shape repeated across every summary/priority-stats aggregation
// (spec §4.7.3).
type StatusCounts struct {
	Total     int     `json:"total"`
	Passed    int     `json:"passed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	PassRate  float64 `json:"pass_rate"`
}

func countStatuses(statuses []store.TestStatus) StatusCounts {
	var c StatusCounts
	for _, s := range statuses {
		c.Total++
		switch s {
		case store.StatusPassed:
			c.Passed++
		case store.StatusFailed:
			c.Failed++
		case store.StatusSkipped:
			c.Skipped++
		}
	}
	c.PassRate = store.ComputePassRate(c.Total, c.Passed)
	return c
}

// ModuleSummary is the per-module aggregation served by
// summary/{release}/{module} (spec §4.7.3).
type ModuleSummary struct {
	Module          string       `json:"module"`
	StatusCounts                 // latest parent job's filtered sub-jobs
	RecentJobs      []string     `json:"recent_jobs"`
	PassRateHistory []float64    `json:"pass_rate_history"`
}

// AllModulesSummary is the union aggregation served by the
// "All Modules" breakdown (spec §4.7.3).
type AllModulesSummary struct {
	Modules         []ModuleSummary  `json:"modules"`
	PriorityCounts  map[string]int   `json:"priority_counts"`
	FlakyTestKeys   []string         `json:"flaky_test_keys"`
}

// PriorityStats is the {priority -> StatusCounts} breakdown served by
// priority-stats/{release}/{module}/{jobId} (spec §4.7.3).
type PriorityStats struct {
	ByPriority map[string]StatusCounts `json:"by_priority"`
	Previous   map[string]StatusCounts `json:"previous,omitempty"`
}

// BugImpact is the per-module, per-bug-type distinct-affected-test
// count (spec §4.7.3).
type BugImpact struct {
	Module    string `json:"module"`
	BugType   string `json:"bug_type"`
	Affected  int    `json:"affected_tests"`
}

// FailureCluster groups failing tests sharing a signature (spec §4.7.4).
type FailureCluster struct {
	ErrorType         string   `json:"error_type"`
	FilePath          string   `json:"file_path"`
	LineNumber        int      `json:"line_number"`
	NormalizedMessage string   `json:"normalized_message"`
	Fingerprint       string   `json:"fingerprint"`
	MatchType         string   `json:"match_type"`
	Tests             []string `json:"tests"`
	Topologies        []string `json:"topologies"`
	Priorities        []string `json:"priorities"`
}
