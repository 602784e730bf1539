package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/jordigilh/regtrack/internal/store"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

const recentJobWindow = 10

// ModuleSummary implements the summary/{release}/{module} aggregation
// (spec §4.7.3): the latest parent job's filtered sub-jobs, plus the
// last 10 parent groups' history.
func (e *Engine) ModuleSummary(ctx context.Context, db store.DBTX, releaseID int64, module string) (*ModuleSummary, error) {
	defer func(start time.Time) { metrics.RecordAnalyticsQuery("module_summary", time.Since(start)) }(time.Now())

	parents, err := e.store.ListParentJobIDs(ctx, db, releaseID, module, recentJobWindow)
	if err != nil {
		return nil, err
	}
	if len(parents) == 0 {
		return &ModuleSummary{Module: module}, nil
	}

	countsByParent, err := e.countsByParent(ctx, db, releaseID, module, parents)
	if err != nil {
		return nil, err
	}

	history := make([]float64, 0, len(parents))
	recent := make([]string, 0, len(parents))
	for i := len(parents) - 1; i >= 0; i-- {
		pid := parents[i]
		recent = append(recent, pid)
		history = append(history, countsByParent[pid].PassRate)
	}

	return &ModuleSummary{
		Module:          module,
		StatusCounts:    countsByParent[parents[0]],
		RecentJobs:      recent,
		PassRateHistory: history,
	}, nil
}

// countsByParent groups a release/module's test results by effective
// parent job id in a single pair of queries (job list + result list),
// filtering results to rows whose own testcase_module matches.
func (e *Engine) countsByParent(ctx context.Context, db store.DBTX, releaseID int64, module string, parents []string) (map[string]StatusCounts, error) {
	jobs, err := e.store.ListJobsForRelease(ctx, db, releaseID, "", module)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(parents))
	for _, p := range parents {
		wanted[p] = struct{}{}
	}

	parentOfJob := make(map[int64]string, len(jobs))
	jobIDs := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		pid := j.EffectiveParentJobID()
		if _, ok := wanted[pid]; !ok {
			continue
		}
		parentOfJob[j.ID] = pid
		jobIDs = append(jobIDs, j.ID)
	}

	results, err := e.store.ListTestResultsForJobs(ctx, db, jobIDs)
	if err != nil {
		return nil, err
	}

	statusesByParent := make(map[string][]store.TestStatus, len(parents))
	for _, tr := range results {
		if tr.TestcaseModule == nil || *tr.TestcaseModule != module {
			continue
		}
		pid := parentOfJob[tr.JobID]
		statusesByParent[pid] = append(statusesByParent[pid], tr.Status)
	}

	out := make(map[string]StatusCounts, len(parents))
	for _, p := range parents {
		out[p] = countStatuses(statusesByParent[p])
	}
	return out, nil
}

// AllModulesSummary implements the "All Modules" aggregation (spec
// §4.7.3): enumerates testcase_module values, calls ModuleSummary per
// module, and unions per-priority counts and flaky test keys.
func (e *Engine) AllModulesSummary(ctx context.Context, db store.DBTX, releaseID int64, jobLimit int) (*AllModulesSummary, error) {
	modules, err := e.store.ListTestcaseModules(ctx, db, releaseID)
	if err != nil {
		return nil, err
	}

	out := &AllModulesSummary{
		PriorityCounts: make(map[string]int),
	}
	flakyKeys := make(map[string]struct{})

	for _, module := range modules {
		summary, err := e.ModuleSummary(ctx, db, releaseID, module)
		if err != nil {
			return nil, err
		}
		out.Modules = append(out.Modules, *summary)

		trends, err := e.CalculateTestTrends(ctx, db, releaseID, module, true, jobLimit)
		if err != nil {
			return nil, err
		}
		for _, t := range trends {
			priority := "UNKNOWN"
			if t.Priority != nil {
				priority = string(*t.Priority)
			}
			out.PriorityCounts[priority]++

			if Classify(t).IsFlaky {
				flakyKeys[t.TestKey()] = struct{}{}
			}
		}
	}

	out.FlakyTestKeys = make([]string, 0, len(flakyKeys))
	for k := range flakyKeys {
		out.FlakyTestKeys = append(out.FlakyTestKeys, k)
	}
	sort.Strings(out.FlakyTestKeys)
	return out, nil
}

// PriorityStats implements priority-stats/{release}/{module}/{jobId}
// (spec §4.7.3): groups a parent's filtered sub-job results by
// priority. With compare set, it embeds the per-priority counts of the
// preceding parent job (the next lower numeric parent job id) as
// Previous; it computes no per-field deltas between the two.
func (e *Engine) PriorityStats(ctx context.Context, db store.DBTX, releaseID int64, module, parentJobID string, compare bool) (*PriorityStats, error) {
	defer func(start time.Time) { metrics.RecordAnalyticsQuery("priority_stats", time.Since(start)) }(time.Now())

	byPriority, err := e.priorityCountsForParent(ctx, db, releaseID, module, parentJobID)
	if err != nil {
		return nil, err
	}
	stats := &PriorityStats{ByPriority: byPriority}

	if !compare {
		return stats, nil
	}

	prevID, err := e.previousParentJobID(ctx, db, releaseID, module, parentJobID)
	if err != nil {
		return nil, err
	}
	if prevID == "" {
		return stats, nil
	}

	prev, err := e.priorityCountsForParent(ctx, db, releaseID, module, prevID)
	if err != nil {
		return nil, err
	}
	stats.Previous = prev
	return stats, nil
}

func (e *Engine) priorityCountsForParent(ctx context.Context, db store.DBTX, releaseID int64, module, parentJobID string) (map[string]StatusCounts, error) {
	jobs, err := e.store.ListJobsForRelease(ctx, db, releaseID, "", module)
	if err != nil {
		return nil, err
	}
	var jobIDs []int64
	for _, j := range jobs {
		if j.EffectiveParentJobID() == parentJobID {
			jobIDs = append(jobIDs, j.ID)
		}
	}

	results, err := e.store.ListTestResultsForJobs(ctx, db, jobIDs)
	if err != nil {
		return nil, err
	}

	statusesByPriority := make(map[string][]store.TestStatus)
	for _, tr := range results {
		if tr.TestcaseModule == nil || *tr.TestcaseModule != module {
			continue
		}
		p := "UNKNOWN"
		if tr.Priority != nil {
			p = string(*tr.Priority)
		}
		statusesByPriority[p] = append(statusesByPriority[p], tr.Status)
	}

	out := make(map[string]StatusCounts, len(statusesByPriority))
	for _, p := range []string{
		string(store.PriorityP0), string(store.PriorityP1),
		string(store.PriorityP2), string(store.PriorityP3),
		string(store.PriorityUnknown),
	} {
		if s, ok := statusesByPriority[p]; ok {
			out[p] = countStatuses(s)
		}
	}
	return out, nil
}

// previousParentJobID returns the parent job id that chronologically
// precedes parentJobID, or "" if none exists.
func (e *Engine) previousParentJobID(ctx context.Context, db store.DBTX, releaseID int64, module, parentJobID string) (string, error) {
	const allParents = 1 << 20
	parents, err := e.store.ListParentJobIDs(ctx, db, releaseID, module, allParents)
	if err != nil {
		return "", err
	}
	for i, p := range parents {
		if p == parentJobID && i+1 < len(parents) {
			return parents[i+1], nil
		}
	}
	return "", nil
}

// AdjustedJobCounts is one job's exclude-flaky-adjusted pass rate
// (spec §4.7.3 "Exclude-flaky adjustment").
type AdjustedJobCounts struct {
	JobID            string  `json:"job_id"`
	Total            int     `json:"total"`
	Passed           int     `json:"passed"`
	AdjustedPassed   int     `json:"adjusted_passed"`
	PassRate         float64 `json:"pass_rate"`
	AdjustedPassRate float64 `json:"adjusted_pass_rate"`
}

// ExcludeFlakyAdjustment implements spec §4.7.3's "Exclude-flaky
// adjustment": the flaky test-key set F is computed over the window,
// then for every job in that window, passed_flaky_in_job is the count
// of F's tests that PASSED in that job, subtracted from the job's
// recorded passed count. Total is unchanged. Uses a single batched
// query across job groups via Store.CountFlakyPassesByJob.
func (e *Engine) ExcludeFlakyAdjustment(ctx context.Context, db store.DBTX, releaseID int64, module string, jobWindow int) ([]AdjustedJobCounts, error) {
	defer func(start time.Time) { metrics.RecordAnalyticsQuery("exclude_flaky_adjustment", time.Since(start)) }(time.Now())

	if jobWindow <= 0 {
		jobWindow = 5
	}

	trends, err := e.CalculateTestTrends(ctx, db, releaseID, module, true, jobWindow)
	if err != nil {
		return nil, err
	}

	var flakyKeys [][3]string
	for _, t := range trends {
		if Classify(t).IsFlaky {
			flakyKeys = append(flakyKeys, [3]string{t.FilePath, t.ClassName, t.TestName})
		}
	}

	parentIDs, err := e.store.ListParentJobIDs(ctx, db, releaseID, module, jobWindow)
	if err != nil {
		return nil, err
	}
	jobs, err := e.jobsForParents(ctx, db, releaseID, module, true, parentIDs)
	if err != nil {
		return nil, err
	}

	jobIDs := make([]int64, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
	}

	flakyPasses, err := e.store.CountFlakyPassesByJob(ctx, db, jobIDs, flakyKeys)
	if err != nil {
		return nil, err
	}

	out := make([]AdjustedJobCounts, 0, len(jobs))
	for _, j := range jobs {
		adjustedPassed := j.Passed - flakyPasses[j.ID]
		out = append(out, AdjustedJobCounts{
			JobID:            j.JobID,
			Total:            j.Total,
			Passed:           j.Passed,
			AdjustedPassed:   adjustedPassed,
			PassRate:         j.PassRate,
			AdjustedPassRate: store.ComputePassRate(j.Total, adjustedPassed),
		})
	}
	sort.Slice(out, func(i, k int) bool { return jobIDLess(out[i].JobID, out[k].JobID) })
	return out, nil
}

// BugImpact implements spec §4.7.3's "Bug impact": for a given parent
// job, join TestcaseMetadata on normalized test names to TestResult
// for that parent's sub-jobs, grouped by module and by bug type,
// counting distinct affected tests.
func (e *Engine) BugImpact(ctx context.Context, db store.DBTX, releaseID int64, parentJobID string) ([]BugImpact, error) {
	defer func(start time.Time) { metrics.RecordAnalyticsQuery("bug_impact", time.Since(start)) }(time.Now())

	jobs, err := e.store.ListJobsForRelease(ctx, db, releaseID, "", "")
	if err != nil {
		return nil, err
	}
	var jobIDs []int64
	for _, j := range jobs {
		if j.EffectiveParentJobID() == parentJobID {
			jobIDs = append(jobIDs, j.ID)
		}
	}
	if len(jobIDs) == 0 {
		return nil, nil
	}

	results, err := e.store.ListTestResultsForJobs(ctx, db, jobIDs)
	if err != nil {
		return nil, err
	}

	metadata, err := e.store.ListTestcaseMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	caseIDByNormalizedName := make(map[string]string, len(metadata))
	for _, m := range metadata {
		caseID := effectiveCaseID(m)
		if caseID == "" {
			continue
		}
		caseIDByNormalizedName[store.NormalizeTestName(m.TestcaseName)] = caseID
	}

	mappings, err := e.store.ListBugTestcaseMappings(ctx, db)
	if err != nil {
		return nil, err
	}
	bugs, err := e.store.ListActiveBugMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	bugTypeByID := make(map[int64]store.BugType, len(bugs))
	for _, b := range bugs {
		bugTypeByID[b.ID] = b.BugType
	}
	bugTypesByCaseID := make(map[string]map[store.BugType]struct{})
	for _, m := range mappings {
		bt, ok := bugTypeByID[m.BugID]
		if !ok {
			continue
		}
		if bugTypesByCaseID[m.CaseID] == nil {
			bugTypesByCaseID[m.CaseID] = make(map[store.BugType]struct{})
		}
		bugTypesByCaseID[m.CaseID][bt] = struct{}{}
	}

	type bucket struct {
		module  string
		bugType store.BugType
	}
	affected := make(map[bucket]map[string]struct{})

	for _, tr := range results {
		caseID, ok := caseIDByNormalizedName[store.NormalizeTestName(tr.TestName)]
		if !ok {
			continue
		}
		bugTypes, ok := bugTypesByCaseID[caseID]
		if !ok {
			continue
		}
		module := ""
		if tr.TestcaseModule != nil {
			module = *tr.TestcaseModule
		}
		for bt := range bugTypes {
			b := bucket{module: module, bugType: bt}
			if affected[b] == nil {
				affected[b] = make(map[string]struct{})
			}
			affected[b][tr.TestKey()] = struct{}{}
		}
	}

	out := make([]BugImpact, 0, len(affected))
	for b, tests := range affected {
		out = append(out, BugImpact{Module: b.module, BugType: string(b.bugType), Affected: len(tests)})
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Module != out[k].Module {
			return out[i].Module < out[k].Module
		}
		return out[i].BugType < out[k].BugType
	})
	return out, nil
}

// effectiveCaseID returns the test_case_id, falling back to
// testrail_id — the identifier bug_testcase_mappings.case_id matches
// against (spec §3).
func effectiveCaseID(m store.TestcaseMetadata) string {
	if m.TestCaseID != nil && *m.TestCaseID != "" {
		return *m.TestCaseID
	}
	if m.TestrailID != nil && *m.TestrailID != "" {
		return *m.TestrailID
	}
	return ""
}
