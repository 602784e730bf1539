package httpapi

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
)

func (a *API) listReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := a.store.ListReleases(r.Context(), a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	names := make([]string, len(releases))
	for i, rel := range releases {
		names[i] = rel.Name
	}
	writeJSON(w, http.StatusOK, paginate(names, parsePageParams(r)))
}

func (a *API) resolveRelease(r *http.Request) (int64, string, error) {
	name := chi.URLParam(r, "release")
	if err := validateName("release", name); err != nil {
		return 0, "", err
	}
	rel, err := a.store.GetReleaseByName(r.Context(), a.store.DB(), name)
	if err != nil {
		return 0, "", err
	}
	if rel == nil {
		return 0, "", apperrors.Newf(apperrors.ErrorTypeNotFound, "release %q not found", name)
	}
	return rel.ID, rel.Name, nil
}

func (a *API) listModules(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	modules, err := a.store.ListTestcaseModules(r.Context(), a.store.DB(), releaseID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(modules, parsePageParams(r)))
}

func (a *API) listVersions(w http.ResponseWriter, r *http.Request) {
	releaseID, _, err := a.resolveRelease(r)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	jobs, err := a.store.ListJobsForRelease(r.Context(), a.store.DB(), releaseID, "", "")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	seen := make(map[string]struct{})
	var versions []string
	for _, j := range jobs {
		if j.Version == nil || *j.Version == "" {
			continue
		}
		if _, ok := seen[*j.Version]; ok {
			continue
		}
		seen[*j.Version] = struct{}{}
		versions = append(versions, *j.Version)
	}
	sort.Strings(versions)
	writeJSON(w, http.StatusOK, paginate(versions, parsePageParams(r)))
}

func (a *API) listParentJobs(w http.ResponseWriter, r *http.Request) {
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

	const allParents = 1 << 20
	parents, err := a.store.ListParentJobIDs(r.Context(), a.store.DB(), releaseID, module, allParents)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(parents, parsePageParams(r)))
}
