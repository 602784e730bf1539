// Package ingestion implements the Ingestion Pipeline (spec §4.5): the
// unified-parent Jenkins polling algorithm that discovers builds,
// fans out module downloads across a bounded worker pool, and drives
// the Log Parser and Import Service to completion for each module.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/regtrack/internal/ciclient"
	"github.com/jordigilh/regtrack/internal/importer"
	"github.com/jordigilh/regtrack/internal/notify"
	"github.com/jordigilh/regtrack/internal/parser"
	"github.com/jordigilh/regtrack/internal/platform/apperrors"
	"github.com/jordigilh/regtrack/internal/platform/logging"
	"github.com/jordigilh/regtrack/internal/store"
	"github.com/jordigilh/regtrack/pkg/metrics"
)

// Config controls the pipeline's behavior (spec §4.5).
type Config struct {
	ParentJobURL       string
	LogsBaseDir        string
	ModuleWorkerPool   int
	CleanupAfterImport bool
}

// Pipeline is the Ingestion Pipeline (C5).
type Pipeline struct {
	ci       *ciclient.Client
	store    *store.Store
	importer *importer.Service
	cfg      Config
	log      logr.Logger
	notifier notify.Sink
}

// New builds a Pipeline. The notification sink defaults to
// notify.NoopSink; wire one with SetNotifier to get alerted on
// per-module import failures.
func New(ci *ciclient.Client, s *store.Store, imp *importer.Service, cfg Config, log logr.Logger) *Pipeline {
	if cfg.ModuleWorkerPool <= 0 || cfg.ModuleWorkerPool > 5 {
		cfg.ModuleWorkerPool = 5
	}
	return &Pipeline{ci: ci, store: s, importer: imp, cfg: cfg, log: log, notifier: notify.NoopSink{}}
}

// SetNotifier replaces the pipeline's failure-notification sink.
func (p *Pipeline) SetNotifier(n notify.Sink) {
	p.notifier = n
}

// moduleJob is one (normalizedModuleName -> (jobURL, jobID)) entry
// from a parsed build map (spec §4.5 step 4.b).
type moduleJob struct {
	name  string
	url   string
	jobID string
}

// Poll runs one full tick of the polling algorithm.
func (p *Pipeline) Poll(ctx context.Context) error {
	fields := logging.NewFields().Component("ingestion").Operation("poll")
	start := time.Now()

	releases, err := p.store.ListActiveReleases(ctx, p.store.DB())
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeSchedule, "list active releases")
	}
	if len(releases) == 0 {
		p.log.V(1).Info("no active releases, skipping poll", fields.KeysAndValues()...)
		return nil
	}

	minBuild := releases[0].LastProcessedBuild
	for _, r := range releases[1:] {
		if r.LastProcessedBuild < minBuild {
			minBuild = r.LastProcessedBuild
		}
	}

	logID, err := p.store.StartPollingLog(ctx, p.store.DB(), nil)
	if err != nil {
		return err
	}

	builds, err := p.ci.GetJobBuilds(ctx, p.cfg.ParentJobURL, minBuild+1)
	if err != nil {
		_ = p.store.FinishPollingLog(ctx, p.store.DB(), logID, "failed", 0, 0, 0, strPtr(err.Error()))
		metrics.RecordIngestionRun("failed", time.Since(start))
		return apperrors.Wrap(err, apperrors.ErrorTypeSchedule, "get job builds")
	}

	ascending := make([]int64, len(builds))
	for i, b := range builds {
		ascending[len(builds)-1-i] = b
	}

	var highestProcessed int64
	modulesOK, modulesFail := 0, 0

	for _, build := range ascending {
		buildURL := fmt.Sprintf("%s/%d/", strings.TrimRight(p.cfg.ParentJobURL, "/"), build)
		ok, fail := p.processBuild(ctx, buildURL)
		modulesOK += ok
		modulesFail += fail
		if fail == 0 {
			highestProcessed = build
		}
	}

	if highestProcessed > 0 {
		for _, r := range releases {
			if err := p.store.AdvanceLastProcessedBuild(ctx, p.store.DB(), r.ID, highestProcessed); err != nil {
				p.log.Error(err, "advance last_processed_build failed", fields.Release(r.Name).KeysAndValues()...)
			}
		}
	}

	status := "success"
	if modulesFail > 0 {
		status = "partial"
	}
	if err := p.store.FinishPollingLog(ctx, p.store.DB(), logID, status, len(builds), modulesOK, modulesFail, nil); err != nil {
		p.log.Error(err, "finish polling log failed", fields.KeysAndValues()...)
	}

	metrics.RecordIngestionRun(status, time.Since(start))
	p.log.Info("poll complete", fields.Count("builds", len(builds)).
		Count("modules_ok", modulesOK).Count("modules_fail", modulesFail).KeysAndValues()...)
	return nil
}

// processBuild handles step 4 of the polling algorithm for a single
// parent build, fanning module downloads out across the bounded
// worker pool. It returns (modulesOK, modulesFail).
func (p *Pipeline) processBuild(ctx context.Context, buildURL string) (int, int) {
	fields := logging.NewFields().Component("ingestion").Operation("process_build")

	buildMap, err := p.ci.DownloadBuildMap(ctx, buildURL)
	if err != nil {
		p.log.Error(err, "download build map failed", fields.Err(err).KeysAndValues()...)
		return 0, 1
	}
	if buildMap == nil {
		p.log.V(1).Info("build map missing, skipping build", fields.KeysAndValues()...)
		return 0, 0
	}

	modules := parseBuildMap(buildMap, buildURL)

	var parentVersion *string
	if parentInfo, err := p.ci.GetJobInfo(ctx, buildURL); err != nil {
		p.log.Error(err, "get parent job info failed, proceeding without a version fallback", fields.KeysAndValues()...)
	} else if v := extractVersionFromDisplayName(parentInfo.DisplayName); v != nil {
		parentVersion = v
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ModuleWorkerPool)

	var okCount, failCount atomic.Int32
	for _, mod := range modules {
		mod := mod
		g.Go(func() error {
			if err := p.importModule(gctx, mod, parentVersion); err != nil {
				p.log.Error(err, "module import failed", fields.Module(mod.name).JobID(mod.jobID).KeysAndValues()...)
				if nerr := p.notifier.Notify(ctx, notify.Event{Module: mod.name, Reason: err.Error()}); nerr != nil {
					p.log.Error(nerr, "notify sink failed", fields.Module(mod.name).KeysAndValues()...)
				}
				failCount.Add(1)
				return nil
			}
			okCount.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(okCount.Load()), int(failCount.Load())
}

// importModule downloads, parses and imports a single module's job
// (spec §4.5 steps 4.d-4.h), inside its own transaction.
func (p *Pipeline) importModule(ctx context.Context, mod moduleJob, parentVersion *string) error {
	info, err := p.ci.GetJobInfo(ctx, mod.url)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeSchedule, "get job info for module %q", mod.name)
	}

	version := parentVersion
	if info.DisplayName != "" {
		if v := extractVersionFromDisplayName(info.DisplayName); v != nil {
			version = v
		}
	}
	if version == nil {
		return apperrors.Newf(apperrors.ErrorTypeSchedule, "module %q has no resolvable version", mod.name)
	}
	release := ciclient.MapVersionToRelease(*version)
	if release == nil {
		return apperrors.Newf(apperrors.ErrorTypeSchedule, "module %q version %q does not map to a release", mod.name, *version)
	}

	destDir := filepath.Join(p.cfg.LogsBaseDir, *release, mod.name, mod.jobID)
	if err := p.downloadArtifacts(ctx, mod.url, destDir); err != nil {
		return err
	}

	results, err := parser.ParseJobDirectory(destDir, p.log)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrorTypeParse, "parse job directory for module %q", mod.name)
	}

	executedAt := info.Timestamp
	return p.store.WithTx(ctx, func(tx store.DBTX) error {
		_, err := p.importer.ImportJob(ctx, tx, importerInput(*release, mod, version, results, executedAt))
		if err != nil {
			return err
		}
		if p.cfg.CleanupAfterImport {
			_ = os.RemoveAll(destDir)
		}
		return nil
	})
}

func importerInput(release string, mod moduleJob, version *string, results []parser.TestResult, executedAt time.Time) importer.ImportJobInput {
	return importer.ImportJobInput{
		ReleaseName:  release,
		ModuleName:   mod.name,
		JobID:        mod.jobID,
		JenkinsURL:   mod.url,
		Version:      version,
		SkipIfExists: true,
		ExecutedAt:   &executedAt,
		Results:      results,
	}
}

// downloadArtifacts fetches the .order.txt run logs under hapy/ and
// the JUnit XML under hapy/reports/junit/, re-rooting JUnit files to
// drop the hapy/reports/ prefix (spec §4.5 step 4.f).
func (p *Pipeline) downloadArtifacts(ctx context.Context, jobURL, destDir string) error {
	paths, err := p.ci.GetArtifactsList(ctx, jobURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeSchedule, "list artifacts")
	}

	for _, rel := range paths {
		var dest string
		switch {
		case strings.HasPrefix(rel, "hapy/reports/junit/"):
			dest = filepath.Join(destDir, "junit", strings.TrimPrefix(rel, "hapy/reports/junit/"))
		case strings.HasPrefix(rel, "hapy/") && strings.HasSuffix(rel, ".order.txt"):
			dest = filepath.Join(destDir, filepath.Base(rel))
		default:
			continue
		}
		if err := p.ci.DownloadArtifact(ctx, jobURL, rel, dest); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrorTypeSchedule, "download artifact %q", rel)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

// Selection is one operator-chosen build, the request shape POST
// /jenkins/download-selected accepts (spec §6, grounded on
// download_selected_jobs/DiscoveredMainJob).
type Selection struct {
	ReleaseID   int64
	ReleaseName string
	BuildNumber int64
	BuildURL    string
}

// DownloadSelected downloads and imports exactly the operator's chosen
// builds, in contrast to Poll's automatic full-range sweep from
// last_processed_build. progress receives one line per step, the same
// shape Poll's structured logging would produce, so a caller can pipe
// it straight into the Job Tracker's log queue. Returns
// (successfulBuilds, totalBuilds).
func (p *Pipeline) DownloadSelected(ctx context.Context, selections []Selection, progress func(string)) (int, int) {
	if progress == nil {
		progress = func(string) {}
	}

	highestByRelease := make(map[int64]int64)
	successBuilds := 0

	for _, sel := range selections {
		progress(fmt.Sprintf("processing %s build #%d", sel.ReleaseName, sel.BuildNumber))

		ok, fail := p.processBuild(ctx, sel.BuildURL)
		if ok == 0 {
			progress(fmt.Sprintf("build #%d failed: no modules imported", sel.BuildNumber))
			continue
		}

		progress(fmt.Sprintf("build #%d completed: %d modules ok, %d failed", sel.BuildNumber, ok, fail))
		successBuilds++
		if sel.BuildNumber > highestByRelease[sel.ReleaseID] {
			highestByRelease[sel.ReleaseID] = sel.BuildNumber
		}
	}

	progress("updating last_processed_build tracker")
	for releaseID, highest := range highestByRelease {
		if err := p.store.AdvanceLastProcessedBuild(ctx, p.store.DB(), releaseID, highest); err != nil {
			p.log.Error(err, "advance last_processed_build failed", "release_id", releaseID)
		}
	}

	return successBuilds, len(selections)
}
