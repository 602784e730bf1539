package httpapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/store"
)

// searchTestcases implements GET /search/testcases: a case-insensitive
// substring match over the TestcaseMetadata catalog's testcase names.
func (a *API) searchTestcases(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	all, err := a.store.ListTestcaseMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	var matched []store.TestcaseMetadata
	for _, m := range all {
		if q == "" || strings.Contains(strings.ToLower(m.TestcaseName), q) {
			matched = append(matched, m)
		}
	}
	writeJSON(w, http.StatusOK, paginate(matched, parsePageParams(r)))
}

func (a *API) searchTestcaseByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	all, err := a.store.ListTestcaseMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	for _, m := range all {
		if m.TestcaseName == name || store.NormalizeTestName(m.TestcaseName) == store.NormalizeTestName(name) {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, a.log, apperrors.Newf(apperrors.ErrorTypeNotFound, "test case %q not found", name))
}

// searchAutocomplete returns up to 20 distinct testcase names whose
// prefix matches q, sorted, for a type-ahead client.
func (a *API) searchAutocomplete(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	all, err := a.store.ListTestcaseMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	seen := make(map[string]struct{})
	var names []string
	for _, m := range all {
		if q != "" && !strings.HasPrefix(strings.ToLower(m.TestcaseName), q) {
			continue
		}
		if _, ok := seen[m.TestcaseName]; ok {
			continue
		}
		seen[m.TestcaseName] = struct{}{}
		names = append(names, m.TestcaseName)
	}
	sort.Strings(names)
	if len(names) > 20 {
		names = names[:20]
	}
	writeJSON(w, http.StatusOK, names)
}

// searchStatistics summarizes the TestcaseMetadata catalog by priority
// and automation status.
func (a *API) searchStatistics(w http.ResponseWriter, r *http.Request) {
	all, err := a.store.ListTestcaseMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	byPriority := make(map[string]int)
	byAutomation := make(map[string]int)
	for _, m := range all {
		p := string(store.PriorityUnknown)
		if m.Priority != nil {
			p = string(*m.Priority)
		}
		byPriority[p]++
		status := "UNKNOWN"
		if m.AutomationStatus != nil && *m.AutomationStatus != "" {
			status = *m.AutomationStatus
		}
		byAutomation[status]++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":              len(all),
		"by_priority":        byPriority,
		"by_automation_status": byAutomation,
	})
}

// searchFilteredTestcases combines component/priority/automation-status
// filters over the TestcaseMetadata catalog.
func (a *API) searchFilteredTestcases(w http.ResponseWriter, r *http.Request) {
	priorities, err := parseCSVFilter("priority", r.URL.Query().Get("priorities"), validPriorities)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	prioritySet := toSet(priorities)
	component := r.URL.Query().Get("component")
	automationStatus := r.URL.Query().Get("automation_status")

	all, err := a.store.ListTestcaseMetadata(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	var matched []store.TestcaseMetadata
	for _, m := range all {
		if len(prioritySet) > 0 {
			p := string(store.PriorityUnknown)
			if m.Priority != nil {
				p = string(*m.Priority)
			}
			if _, ok := prioritySet[p]; !ok {
				continue
			}
		}
		if component != "" && (m.Component == nil || *m.Component != component) {
			continue
		}
		if automationStatus != "" && (m.AutomationStatus == nil || *m.AutomationStatus != automationStatus) {
			continue
		}
		matched = append(matched, m)
	}
	writeJSON(w, http.StatusOK, paginate(matched, parsePageParams(r)))
}
