package analytics

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/jordigilh/regtrack/internal/store"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

// CalculateTestTrends implements calculateTestTrends (spec §4.7.1):
// selects the jobs for a release/module (authoritative by default,
// legacy Jenkins-module selection when useTestcaseModule is false),
// optionally restricted to the top jobLimit parent groups, and builds
// the test_key -> TestTrend map across them.
func (e *Engine) CalculateTestTrends(ctx context.Context, db store.DBTX, releaseID int64, module string, useTestcaseModule bool, jobLimit int) ([]*TestTrend, error) {
	defer func(start time.Time) { metrics.RecordAnalyticsQuery("test_trends", time.Since(start)) }(time.Now())

	var jobs []store.Job
	var err error

	switch {
	case jobLimit > 0:
		parentIDs, perr := e.store.ListParentJobIDs(ctx, db, releaseID, module, jobLimit)
		if perr != nil {
			return nil, perr
		}
		jobs, err = e.jobsForParents(ctx, db, releaseID, module, useTestcaseModule, parentIDs)
	case useTestcaseModule:
		jobs, err = e.store.ListJobsForRelease(ctx, db, releaseID, "", module)
	default:
		jobs, err = e.store.ListJobsForRelease(ctx, db, releaseID, module, "")
	}
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	jobIDs := make([]int64, len(jobs))
	jobByInternalID := make(map[int64]store.Job, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
		jobByInternalID[j.ID] = j
	}

	results, err := e.store.ListTestResultsForJobs(ctx, db, jobIDs)
	if err != nil {
		return nil, err
	}

	metadataByName, err := e.testStateByNormalizedName(ctx, db)
	if err != nil {
		return nil, err
	}

	return buildTrends(results, jobByInternalID, metadataByName), nil
}

// jobsForParents restricts ListJobsForRelease's result to the sub-jobs
// of the given parent ids, keeping ALL sub-jobs of a retained parent
// even if they belong to older sibling module jobs (spec §4.7.1).
func (e *Engine) jobsForParents(ctx context.Context, db store.DBTX, releaseID int64, module string, useTestcaseModule bool, parentIDs []string) ([]store.Job, error) {
	var all []store.Job
	var err error
	if useTestcaseModule {
		all, err = e.store.ListJobsForRelease(ctx, db, releaseID, "", module)
	} else {
		all, err = e.store.ListJobsForRelease(ctx, db, releaseID, module, "")
	}
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = struct{}{}
	}

	filtered := make([]store.Job, 0, len(all))
	for _, j := range all {
		if _, ok := wanted[j.EffectiveParentJobID()]; ok {
			filtered = append(filtered, j)
		}
	}
	return filtered, nil
}

// testStateByNormalizedName returns normalized testcase_name ->
// test_state, used to enrich each TestTrend (spec §4.7.1 "Enrich
// test_state by joining TestcaseMetadata").
func (e *Engine) testStateByNormalizedName(ctx context.Context, db store.DBTX) (map[string]*string, error) {
	rows, err := e.store.ListTestcaseMetadata(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*string, len(rows))
	for _, r := range rows {
		out[store.NormalizeTestName(r.TestcaseName)] = r.TestState
	}
	return out, nil
}

// buildTrends groups TestResult rows by test_key and fills in each
// TestTrend's per-job maps.
func buildTrends(results []store.TestResult, jobByInternalID map[int64]store.Job, testStateByName map[string]*string) []*TestTrend {
	trends := make(map[string]*TestTrend)
	order := make([]string, 0)

	for _, tr := range results {
		job, ok := jobByInternalID[tr.JobID]
		if !ok {
			continue
		}

		key := tr.TestKey()
		t, ok := trends[key]
		if !ok {
			t = &TestTrend{
				FilePath:         tr.FilePath,
				ClassName:        tr.ClassName,
				TestName:         tr.TestName,
				Priority:         tr.Priority,
				TopologyMetadata: tr.TopologyMetadata,
				ResultsByJob:     make(map[string]store.TestStatus),
				RerunInfoByJob:   make(map[string]RerunInfo),
				JobModules:       make(map[string]string),
				ParentJobIDs:     make(map[string]struct{}),
			}
			if ts, ok := testStateByName[store.NormalizeTestName(tr.TestName)]; ok {
				t.TestState = ts
			}
			trends[key] = t
			order = append(order, key)
		}

		t.ResultsByJob[job.JobID] = tr.Status
		t.RerunInfoByJob[job.JobID] = RerunInfo{WasRerun: tr.WasRerun, RerunStillFailed: tr.RerunStillFailed}
		t.ParentJobIDs[job.EffectiveParentJobID()] = struct{}{}
		if tr.TestcaseModule != nil {
			t.JobModules[job.JobID] = *tr.TestcaseModule
		}
		if tr.Priority != nil {
			t.Priority = tr.Priority
		}
		if tr.TopologyMetadata != nil {
			t.TopologyMetadata = tr.TopologyMetadata
		}
	}

	out := make([]*TestTrend, 0, len(order))
	for _, key := range order {
		t := trends[key]
		t.jobIDsAsc = sortedJobIDs(t.ResultsByJob)
		out = append(out, t)
	}
	return out
}

// sortedJobIDs returns a TestTrend's own job ids, ascending by numeric
// value — the ordering every classifier in §4.7.2 operates over.
func sortedJobIDs(byJob map[string]store.TestStatus) []string {
	ids := make([]string, 0, len(byJob))
	for id := range byJob {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return jobIDLess(ids[i], ids[j])
	})
	return ids
}

func jobIDLess(a, b string) bool {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return an < bn
	}
	return a < b
}
