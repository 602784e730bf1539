package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/httpclient"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/internal/store"
)

// BugSource fetches the bug-tracker snapshot the Bug Updater refreshes
// BugMetadata/BugTestcaseMapping from (spec §1 "bug-tracking JSON
// fetcher... described only at their interface", supplemented per
// original_source/app/services/bug_updater_service.py).
type BugSource interface {
	FetchBugs(ctx context.Context) (BugSnapshot, error)
}

// BugSnapshot is the raw tracker payload, keyed by bug type, the same
// shape as vlei_vleng_dict.json's top-level {"VLEI": [...], "VLENG":
// [...]} object.
type BugSnapshot map[store.BugType][]BugRecord

// BugRecord is a single tracked defect as the bug tracker reports it.
type BugRecord struct {
	DefectID string          `json:"defect_id"`
	URL      string          `json:"URL"`
	CaseID   string          `json:"case_id"`
	Labels   json.RawMessage `json:"labels"`
	JiraInfo struct {
		Status           *string `json:"status"`
		Summary          *string `json:"summary"`
		Priority         *string `json:"priority"`
		Assignee         *string `json:"assignee"`
		Component        *string `json:"component"`
		Resolution       *string `json:"resolution"`
		AffectedVersions *string `json:"affected_versions"`
	} `json:"jira_info"`
}

// HTTPBugSource fetches a BugSnapshot from a Jenkins-hosted JSON
// artifact over HTTP basic auth, the transport the original service
// used for vlei_vleng_dict.json.
type HTTPBugSource struct {
	http     *http.Client
	url      string
	username string
	password string
}

// NewHTTPBugSource builds an HTTPBugSource against url, authenticating
// with username/password.
func NewHTTPBugSource(url, username, password string) *HTTPBugSource {
	return &HTTPBugSource{
		http:     httpclient.NewClient(httpclient.BugTrackerClientConfig(30 * time.Second)),
		url:      url,
		username: username,
		password: password,
	}
}

// FetchBugs implements BugSource.
func (h *HTTPBugSource) FetchBugs(ctx context.Context) (BugSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "build bug tracker request")
	}
	req.SetBasicAuth(h.username, h.password)

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "fetch bug tracker snapshot")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.ErrorTypeCIRequest, "bug tracker returned status %d", resp.StatusCode)
	}

	var snapshot BugSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeCIRequest, "decode bug tracker snapshot")
	}
	return snapshot, nil
}

// BugUpdater refreshes BugMetadata and BugTestcaseMapping from a
// BugSource (the C6 "bug_updater" scheduled job).
type BugUpdater struct {
	source BugSource
	store  *store.Store
	log    logr.Logger
}

// NewBugUpdater builds a BugUpdater.
func NewBugUpdater(source BugSource, s *store.Store, log logr.Logger) *BugUpdater {
	return &BugUpdater{source: source, store: s, log: log}
}

// UpdateStats summarizes one refresh run, surfaced through the
// MetadataSyncLog row the caller finishes with it.
type UpdateStats struct {
	BugsUpdated     int
	MappingsCreated int
}

// Run fetches the current snapshot, upserts every bug record by
// (defect_id, bug_type), and rebuilds each bug's testcase mappings
// from its comma-separated case_id field, deduplicating within the
// bug. A single bug's failure is logged and skipped rather than
// aborting the whole refresh.
func (u *BugUpdater) Run(ctx context.Context) (UpdateStats, error) {
	snapshot, err := u.source.FetchBugs(ctx)
	if err != nil {
		return UpdateStats{}, err
	}

	fields := logging.NewFields().Component("ingestion").Operation("bug_updater")
	var stats UpdateStats

	for _, bugType := range []store.BugType{store.BugTypeVLEI, store.BugTypeVLENG} {
		for _, rec := range snapshot[bugType] {
			labels := rec.Labels
			if labels == nil {
				labels = json.RawMessage("[]")
			}

			bug, err := u.store.UpsertBugMetadata(ctx, u.store.DB(), store.UpsertBugMetadataInput{
				DefectID:         rec.DefectID,
				BugType:          bugType,
				URL:              rec.URL,
				Status:           rec.JiraInfo.Status,
				Summary:          rec.JiraInfo.Summary,
				Priority:         rec.JiraInfo.Priority,
				Assignee:         rec.JiraInfo.Assignee,
				Component:        rec.JiraInfo.Component,
				Resolution:       rec.JiraInfo.Resolution,
				AffectedVersions: rec.JiraInfo.AffectedVersions,
				Labels:           labels,
				IsActive:         true,
			})
			if err != nil {
				u.log.Error(err, "upsert bug metadata failed", fields.Resource("bug", rec.DefectID).KeysAndValues()...)
				continue
			}
			stats.BugsUpdated++

			caseIDs := dedupeCaseIDs(rec.CaseID)
			if err := u.store.ReplaceBugTestcaseMappings(ctx, u.store.DB(), bug.ID, caseIDs); err != nil {
				u.log.Error(err, "replace bug testcase mappings failed", fields.Resource("bug", rec.DefectID).KeysAndValues()...)
				continue
			}
			stats.MappingsCreated += len(caseIDs)
		}
	}

	return stats, nil
}

// dedupeCaseIDs splits a comma-separated case_id field into its
// distinct, trimmed, non-empty members, preserving first-seen order.
func dedupeCaseIDs(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
