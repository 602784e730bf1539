package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jordigilh/regtrack/internal/analytics"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/store"
)

func (a *API) moduleSummary(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	module := chi.URLParam(r, "module")
	if err := validateName("module", module); err != nil {
		writeError(w, a.log, err)
		return
	}

	summary, err := a.analytics.ModuleSummary(r.Context(), a.store.DB(), releaseID, module)
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	if r.URL.Query().Get("exclude_flaky") == "true" {
		window := 5
		if v, perr := strconv.Atoi(r.URL.Query().Get("job_window")); perr == nil && v > 0 {
			window = v
		}
		adjusted, aerr := a.analytics.ExcludeFlakyAdjustment(r.Context(), a.store.DB(), releaseID, module, window)
		if aerr != nil {
			writeError(w, a.log, aerr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "exclude_flaky_adjustment": adjusted})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (a *API) priorityStats(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	module := chi.URLParam(r, "module")
	if err := validateName("module", module); err != nil {
		writeError(w, a.log, err)
		return
	}
	job := chi.URLParam(r, "job")
	compare := r.URL.Query().Get("compare") == "true"

	stats, err := a.analytics.PriorityStats(r.Context(), a.store.DB(), releaseID, module, job, compare)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) trends(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	module := chi.URLParam(r, "module")
	if err := validateName("module", module); err != nil {
		writeError(w, a.log, err)
		return
	}

	jobLimit := 0
	if v, perr := strconv.Atoi(r.URL.Query().Get("job_limit")); perr == nil && v > 0 {
		jobLimit = v
	}

	trends, err := a.analytics.CalculateTestTrends(r.Context(), a.store.DB(), releaseID, module, true, jobLimit)
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	type trendOut struct {
		TestKey        string                    `json:"test_key"`
		Priority       *store.Priority           `json:"priority"`
		JobModules     map[string]string         `json:"job_modules"`
		Classification analytics.Classification `json:"classification"`
	}
	out := make([]trendOut, 0, len(trends))
	for _, t := range trends {
		out = append(out, trendOut{TestKey: t.TestKey(), Priority: t.Priority, JobModules: t.JobModules, Classification: analytics.Classify(t)})
	}
	writeJSON(w, http.StatusOK, paginate(out, parsePageParams(r)))
}

// resolveJob finds the internal store.Job for a (release, module, job)
// path triple, scoped to results whose testcase_module matches.
func (a *API) resolveJob(r *http.Request, releaseID int64, module, jobID string) (*store.Job, error) {
	jobs, err := a.store.ListJobsForRelease(r.Context(), a.store.DB(), releaseID, "", module)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.JobID == jobID {
			jc := j
			return &jc, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrorTypeNotFound, "job %q not found in module %q", jobID, module)
}

func (a *API) jobTests(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	module := chi.URLParam(r, "module")
	if err := validateName("module", module); err != nil {
		writeError(w, a.log, err)
		return
	}
	job, err := a.resolveJob(r, releaseID, module, chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	statuses, err := parseCSVFilter("status", r.URL.Query().Get("statuses"), validStatuses)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	priorities, err := parseCSVFilter("priority", r.URL.Query().Get("priorities"), validPriorities)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	search := strings.ToLower(r.URL.Query().Get("search"))

	results, err := a.store.ListTestResultsByJob(r.Context(), a.store.DB(), job.ID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	statusSet := toSet(statuses)
	prioritySet := toSet(priorities)

	filtered := make([]store.TestResult, 0, len(results))
	for _, tr := range results {
		if len(statusSet) > 0 {
			if _, ok := statusSet[string(tr.Status)]; !ok {
				continue
			}
		}
		if len(prioritySet) > 0 {
			p := string(store.PriorityUnknown)
			if tr.Priority != nil {
				p = string(*tr.Priority)
			}
			if _, ok := prioritySet[p]; !ok {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(tr.TestKey()), search) {
			continue
		}
		filtered = append(filtered, tr)
	}

	writeJSON(w, http.StatusOK, paginate(filtered, parsePageParams(r)))
}

func (a *API) clusteredFailures(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	module := chi.URLParam(r, "module")
	if err := validateName("module", module); err != nil {
		writeError(w, a.log, err)
		return
	}
	job, err := a.resolveJob(r, releaseID, module, chi.URLParam(r, "job"))
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	results, err := a.store.ListTestResultsByJob(r.Context(), a.store.DB(), job.ID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	var failed []store.TestResult
	for _, tr := range results {
		if tr.Status == store.StatusFailed {
			failed = append(failed, tr)
		}
	}

	writeJSON(w, http.StatusOK, analytics.ClusterFailures(failed))
}

func (a *API) bugBreakdown(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	parentJobID := r.URL.Query().Get("parent_job_id")
	if err != nil || parentJobID == "" {
		if err == nil {
			err = apperrors.New(apperrors.ErrorTypeValidation, "parent_job_id query parameter is required")
		}
		writeError(w, a.log, err)
		return
	}

	impact, err := a.analytics.BugImpact(r.Context(), a.store.DB(), releaseID, parentJobID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (a *API) bugDetails(w http.ResponseWriter, r *http.Request) {
	bugs, err := a.store.ListActiveBugMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	defectID := r.URL.Query().Get("defect_id")
	if defectID != "" {
		for _, b := range bugs {
			if b.DefectID == defectID {
				writeJSON(w, http.StatusOK, b)
				return
			}
		}
		writeError(w, a.log, apperrors.Newf(apperrors.ErrorTypeNotFound, "bug %q not found", defectID))
		return
	}
	writeJSON(w, http.StatusOK, paginate(bugs, parsePageParams(r)))
}

func (a *API) bugAffectedTests(w http.ResponseWriter, r *http.Request) {
	caseID := r.URL.Query().Get("case_id")
	if caseID == "" {
		writeError(w, a.log, apperrors.New(apperrors.ErrorTypeValidation, "case_id query parameter is required"))
		return
	}

	mappings, err := a.store.ListBugTestcaseMappings(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var bugIDs []int64
	for _, m := range mappings {
		if m.CaseID == caseID {
			bugIDs = append(bugIDs, m.BugID)
		}
	}
	writeJSON(w, http.StatusOK, bugIDs)
}

func toSet(xs []string) map[string]struct{} {
	s := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}
