package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jordigilh/regtrack/internal/ingestion"
	"github.com/jordigilh/regtrack/internal/jobtracker"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/logging"
)

type discoveredBuild struct {
	Key           string `json:"key"`
	Release       string `json:"release"`
	ReleaseID     int64  `json:"release_id"`
	BuildNumber   int64  `json:"build_number"`
	BuildURL      string `json:"build_url"`
	JenkinsJobURL string `json:"jenkins_job_url"`
}

type discoverJobsResponse struct {
	Jobs  []discoveredBuild `json:"jobs"`
	Total int               `json:"total"`
}

// discoverJobs previews new main-job builds for every active Release,
// using each Release's own stored jenkins_job_url/last_processed_build
// rather than a client-supplied job URL (spec §6 "POST
// /jenkins/discover-jobs", grounded on discover_available_jobs).
func (a *API) discoverJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	releases, err := a.store.ListActiveReleases(ctx, a.store.DB())
	if err != nil {
		writeError(w, a.log, err)
		return
	}

	var discovered []discoveredBuild
	for _, rel := range releases {
		if rel.JenkinsJobURL == "" {
			a.log.V(1).Info("release has no jenkins job url configured", "release", rel.Name)
			continue
		}

		builds, err := a.ci.GetJobBuilds(ctx, rel.JenkinsJobURL, rel.LastProcessedBuild+1)
		if err != nil {
			a.log.Error(err, "discover jobs failed for release", "release", rel.Name)
			continue
		}

		for _, build := range builds {
			discovered = append(discovered, discoveredBuild{
				Key:           fmt.Sprintf("%s/%d", rel.Name, build),
				Release:       rel.Name,
				ReleaseID:     rel.ID,
				BuildNumber:   build,
				BuildURL:      fmt.Sprintf("%s/%d/", strings.TrimRight(rel.JenkinsJobURL, "/"), build),
				JenkinsJobURL: rel.JenkinsJobURL,
			})
		}
	}

	writeJSON(w, http.StatusOK, discoverJobsResponse{Jobs: discovered, Total: len(discovered)})
}

type selectionRequest struct {
	Release       string `json:"release" validate:"required"`
	ReleaseID     int64  `json:"release_id" validate:"required"`
	BuildNumber   int64  `json:"build_number" validate:"required"`
	BuildURL      string `json:"build_url" validate:"required,url"`
	JenkinsJobURL string `json:"jenkins_job_url"`
}

type downloadSelectedRequest struct {
	Jobs []selectionRequest `json:"jobs"`
}

type downloadSelectedResponse struct {
	JobID string `json:"job_id"`
}

// downloadSelected starts a background ingestion run over exactly the
// operator's chosen builds, rejecting an empty selection with 400
// rather than silently falling back to a full poll (spec §6, grounded
// on download_selected_jobs). The run is tracked through the Job
// Tracker and streamed via GET /jenkins/download-selected/{jobId}.
func (a *API) downloadSelected(w http.ResponseWriter, r *http.Request) {
	var req downloadSelectedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, a.log, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "decode request body"))
		return
	}
	if len(req.Jobs) == 0 {
		writeError(w, a.log, apperrors.New(apperrors.ErrorTypeValidation, "no jobs selected"))
		return
	}
	for _, j := range req.Jobs {
		if err := a.validate.Struct(j); err != nil {
			writeError(w, a.log, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid selection"))
			return
		}
	}

	selections := make([]ingestion.Selection, len(req.Jobs))
	for i, j := range req.Jobs {
		selections[i] = ingestion.Selection{
			ReleaseID:   j.ReleaseID,
			ReleaseName: j.Release,
			BuildNumber: j.BuildNumber,
			BuildURL:    j.BuildURL,
		}
	}

	jobID := uuid.NewString()
	if err := a.tracker.SetJob(r.Context(), jobtracker.Job{
		ID:        jobID,
		Type:      "jenkins_download",
		Status:    jobtracker.StatusRunning,
		StartedAt: time.Now(),
	}); err != nil {
		writeError(w, a.log, err)
		return
	}

	go a.runSelectedDownload(jobID, selections)

	writeJSON(w, http.StatusAccepted, downloadSelectedResponse{JobID: jobID})
}

// runSelectedDownload executes on its own goroutine, detached from the
// triggering request's context, so the run survives the HTTP handler
// returning.
func (a *API) runSelectedDownload(jobID string, selections []ingestion.Selection) {
	ctx := context.Background()
	fields := logging.NewFields().Component("httpapi").Operation("download_selected").JobID(jobID)

	_ = a.tracker.PushLog(ctx, jobID, fmt.Sprintf("starting on-demand download for %d builds", len(selections)))

	ok, total := a.pipeline.DownloadSelected(ctx, selections, func(line string) {
		_ = a.tracker.PushLog(ctx, jobID, line)
	})

	_ = a.tracker.PushLog(ctx, jobID, fmt.Sprintf("download completed: %d/%d builds succeeded", ok, total))
	a.log.Info("download-selected run finished", fields.Count("success", ok).Count("total", total).KeysAndValues()...)

	now := time.Now()
	_ = a.tracker.UpdateJobField(ctx, jobID, "completed_at", now)
	_ = a.tracker.UpdateJobField(ctx, jobID, "status", jobtracker.StatusCompleted)
}

// downloadSelectedStream streams a download-selected job's logs over
// SSE (spec §4.9).
func (a *API) downloadSelectedStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if err := a.streamer.Stream(w, r, jobID); err != nil {
		writeError(w, a.log, err)
	}
}
